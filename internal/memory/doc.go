// Package memory 定义智能体会话记忆的存储契约，并提供默认的进程内实现。
// Redis 与 MySQL 实现位于 internal/storage 下。
package memory
