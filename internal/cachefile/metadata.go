package cachefile

import (
	"bytes"
	"fmt"
	"net/url"
	"time"

	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/datastream"
)

const (
	// EngineWideDates 起日期使用 64 位儒略日，并在元数据末尾携带属性表。
	EngineWideDates = 13

	// EngineZoneOffsets 起 OffsetFromUTC/TimeZone 两种时间规格带有额外的偏移或时区字段。
	EngineZoneOffsets = 15

	unixEpochJulianDay = 2440588
	invalidTime        = 0xFFFFFFFF
	millisPerDay       = 24 * 60 * 60 * 1000
)

// 时间规格，对应序列化时间戳中的 spec 字节。
const (
	specLocalTime uint8 = iota
	specUTC
	specOffsetFromUTC
	specTimeZone
)

// Header 是一条原始响应头，名称与值均保持原始字节。
type Header struct {
	Name  []byte
	Value []byte
}

// Attribute 是属性表中的一项，ID 为上游库的请求属性编号。
type Attribute struct {
	ID    uint32
	Value []byte
}

// Timestamp 区分“不存在”与零值时间。
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// Metadata 是单条缓存记录的元数据，解码后不再修改。
type Metadata struct {
	// RawURL 保留原始 URL 字符串；URL 解析失败时为 nil，后续阶段需自行容错。
	RawURL string
	URL    *url.URL

	RawHeaders     []Header
	LastModified   Timestamp
	ExpirationDate Timestamp
	SaveToDisk     bool
	Attributes     []Attribute
}

// Header 返回第一条名称匹配（不区分大小写）的响应头。
func (m Metadata) Header(name string) ([]byte, bool) {
	for _, h := range m.RawHeaders {
		if bytes.EqualFold(h.Name, []byte(name)) {
			return h.Value, true
		}
	}
	return nil, false
}

// DecodeMetadata 按 engineVersion 对应的线格式从 r 中解码元数据。
// 字段顺序固定：URL、响应头列表、LastModified、ExpirationDate、SaveToDisk，
// engineVersion >= EngineWideDates 时随后是属性表。
func DecodeMetadata(r *datastream.Reader, engineVersion uint32) (Metadata, error) {
	var md Metadata

	rawURL, err := r.ReadBytes()
	if err != nil {
		return md, fmt.Errorf("url: %w", err)
	}
	md.RawURL = string(rawURL)
	if parsed, err := url.Parse(md.RawURL); err == nil {
		md.URL = parsed
	}

	count, err := r.ReadU32()
	if err != nil {
		return md, fmt.Errorf("header count: %w", err)
	}
	// 每条响应头至少占 8 字节，先校验再分配，防止伪造的计数撑爆内存。
	if uint64(count)*8 > uint64(r.Remaining()) {
		return md, fmt.Errorf("header count %d: %w", count, datastream.ErrTruncated)
	}
	md.RawHeaders = make([]Header, 0, count)
	for i := range count {
		name, err := r.ReadBytes()
		if err != nil {
			return md, fmt.Errorf("header %d name: %w", i, err)
		}
		value, err := r.ReadBytes()
		if err != nil {
			return md, fmt.Errorf("header %d value: %w", i, err)
		}
		md.RawHeaders = append(md.RawHeaders, Header{Name: name, Value: value})
	}

	if md.LastModified, err = decodeTimestamp(r, engineVersion); err != nil {
		return md, fmt.Errorf("last modified: %w", err)
	}
	if md.ExpirationDate, err = decodeTimestamp(r, engineVersion); err != nil {
		return md, fmt.Errorf("expiration date: %w", err)
	}
	if md.SaveToDisk, err = r.ReadBool(); err != nil {
		return md, fmt.Errorf("save to disk: %w", err)
	}

	if engineVersion >= EngineWideDates {
		if md.Attributes, err = decodeAttributes(r); err != nil {
			return md, fmt.Errorf("attributes: %w", err)
		}
	}
	return md, nil
}

func decodeAttributes(r *datastream.Reader) ([]Attribute, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if uint64(count)*8 > uint64(r.Remaining()) {
		return nil, fmt.Errorf("attribute count %d: %w", count, datastream.ErrTruncated)
	}
	attrs := make([]Attribute, 0, count)
	for range count {
		id, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		value, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, Attribute{ID: id, Value: value})
	}
	return attrs, nil
}

// decodeTimestamp 读取 有效位 + 儒略日 + 当日毫秒 + 时间规格。
// 有效位为 false 时后面不再有任何字节。
func decodeTimestamp(r *datastream.Reader, engineVersion uint32) (Timestamp, error) {
	valid, err := r.ReadBool()
	if err != nil || !valid {
		return Timestamp{}, err
	}

	var jd int64
	if engineVersion >= EngineWideDates {
		if jd, err = r.ReadI64(); err != nil {
			return Timestamp{}, err
		}
	} else {
		v, err := r.ReadU32()
		if err != nil {
			return Timestamp{}, err
		}
		jd = int64(v)
	}

	msecs, err := r.ReadU32()
	if err != nil {
		return Timestamp{}, err
	}
	spec, err := r.ReadU8()
	if err != nil {
		return Timestamp{}, err
	}

	loc := time.UTC
	switch spec {
	case specLocalTime:
		loc = time.Local
	case specOffsetFromUTC:
		if engineVersion >= EngineZoneOffsets {
			offset, err := r.ReadI32()
			if err != nil {
				return Timestamp{}, err
			}
			loc = time.FixedZone("", int(offset))
		}
	case specTimeZone:
		if engineVersion >= EngineZoneOffsets {
			zone, err := r.ReadBytes()
			if err != nil {
				return Timestamp{}, err
			}
			if l, err := time.LoadLocation(string(zone)); err == nil {
				loc = l
			}
		}
	}

	if msecs == invalidTime || msecs >= millisPerDay {
		return Timestamp{}, nil
	}
	return Timestamp{Time: civilTime(jd, msecs, loc), Valid: true}, nil
}

// civilTime 将儒略日 + 当日毫秒解释为 loc 中的本地时间。
func civilTime(jd int64, msecs uint32, loc *time.Location) time.Time {
	y, m, d := time.Unix((jd-unixEpochJulianDay)*86400, 0).UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Add(time.Duration(msecs) * time.Millisecond)
}
