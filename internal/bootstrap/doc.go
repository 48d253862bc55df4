// Package bootstrap 按启动顺序装配钱包、动作提供者、大模型与会话记忆，
// 返回显式的 Runtime 对象供命令行、HTTP 服务与演示脚本共用。
package bootstrap
