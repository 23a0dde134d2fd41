package cachefile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/datastream"
	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/testutil"
)

// metadataPrefix 写入 URL + 空响应头列表，返回后续字段由调用方追加。
func metadataPrefix(rawURL string) *testutil.Writer {
	w := &testutil.Writer{}
	w.Blob([]byte(rawURL)).U32(0)
	return w
}

func TestDecodeMetadataOffsetTimestamp(t *testing.T) {
	want := time.Date(2020, 2, 29, 23, 30, 0, 0, time.FixedZone("", 2*3600))
	jd, msecs := testutil.JulianDay(time.Date(2020, 2, 29, 23, 30, 0, 0, time.UTC))

	w := metadataPrefix("https://example.com/")
	w.Bool(true).I64(jd).U32(msecs).U8(specOffsetFromUTC).I32(2 * 3600)
	w.Bool(false).Bool(false).U32(0)

	md, err := DecodeMetadata(datastream.NewReader(w.Bytes()), EngineZoneOffsets)
	require.NoError(t, err)
	require.True(t, md.LastModified.Valid)
	assert.True(t, want.Equal(md.LastModified.Time), "got %v", md.LastModified.Time)
	assert.False(t, md.ExpirationDate.Valid)
	assert.False(t, md.SaveToDisk)
}

func TestDecodeMetadataOffsetSpecBeforeZoneEngine(t *testing.T) {
	jd, msecs := testutil.JulianDay(time.Date(2014, 5, 6, 7, 8, 9, 0, time.UTC))

	// 引擎版本 14 时 OffsetFromUTC 不带偏移字段，紧接着就是下一个时间戳。
	w := metadataPrefix("https://example.com/")
	w.Bool(true).I64(jd).U32(msecs).U8(specOffsetFromUTC)
	w.Bool(false).Bool(true).U32(0)

	r := datastream.NewReader(w.Bytes())
	md, err := DecodeMetadata(r, 14)
	require.NoError(t, err)
	assert.True(t, md.SaveToDisk)
	assert.True(t, r.AtEnd())
	assert.Equal(t, 2014, md.LastModified.Time.Year())
}

func TestDecodeMetadataTimeZoneSpec(t *testing.T) {
	jd, msecs := testutil.JulianDay(time.Date(2022, 7, 1, 8, 0, 0, 0, time.UTC))

	w := metadataPrefix("https://example.com/")
	w.Bool(true).I64(jd).U32(msecs).U8(specTimeZone).Blob([]byte("Nowhere/Invalid"))
	w.Bool(false).Bool(false).U32(0)

	md, err := DecodeMetadata(datastream.NewReader(w.Bytes()), 16)
	require.NoError(t, err)
	require.True(t, md.LastModified.Valid)
	assert.Equal(t, time.UTC, md.LastModified.Time.Location(), "未知时区回退 UTC")
	assert.Equal(t, 8, md.LastModified.Time.Hour())
}

func TestDecodeMetadataNarrowDates(t *testing.T) {
	when := time.Date(2009, 12, 31, 23, 59, 59, 0, time.UTC)
	w := metadataPrefix("http://old.example/")
	w.Timestamp(&when, 11).Bool(false).Bool(true)

	r := datastream.NewReader(w.Bytes())
	md, err := DecodeMetadata(r, 11)
	require.NoError(t, err)
	assert.True(t, when.Equal(md.LastModified.Time))
	assert.Nil(t, md.Attributes)
	assert.True(t, r.AtEnd(), "旧引擎版本不读取属性表")
}

func TestDecodeMetadataInvalidTimeOfDay(t *testing.T) {
	w := metadataPrefix("http://example.org/")
	w.Bool(true).I64(2459000).U32(0xFFFFFFFF).U8(specUTC)
	w.Bool(false).Bool(false).U32(0)

	md, err := DecodeMetadata(datastream.NewReader(w.Bytes()), DefaultEngineVersion)
	require.NoError(t, err)
	assert.False(t, md.LastModified.Valid)
}

func TestDecodeMetadataKeepsUnparsableURL(t *testing.T) {
	w := metadataPrefix("http://[::1%zz/bad")
	w.Bool(false).Bool(false).Bool(false).U32(0)

	md, err := DecodeMetadata(datastream.NewReader(w.Bytes()), DefaultEngineVersion)
	require.NoError(t, err)
	assert.Nil(t, md.URL)
	assert.Equal(t, "http://[::1%zz/bad", md.RawURL)
}

func TestDecodeMetadataTruncation(t *testing.T) {
	full := metadataPrefix("http://example.org/").Bytes()

	// 从 URL 到 LastModified 的有效位，任何位置截断都应报告 ErrTruncated。
	for n := 0; n <= len(full); n++ {
		_, err := DecodeMetadata(datastream.NewReader(full[:n]), DefaultEngineVersion)
		require.ErrorIs(t, err, datastream.ErrTruncated, "n=%d", n)
	}
}
