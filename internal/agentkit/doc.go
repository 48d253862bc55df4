// Package agentkit 把钱包提供者与动作提供者组合为工具目录，
// 负责工具描述导出、按名称分发调用以及调用审计。
package agentkit
