// Package output 把解码后的缓存记录还原为按 URL 组织的文件树：
// <OutputRoot>/<scheme>/<host>/<path>。Planner 负责路径计算与越界拒绝，
// Writer 负责目录创建、原子写入（临时文件 + rename）与时间戳回写。
// 两者都不持有全局状态，输出根目录由调用方显式传入。
package output
