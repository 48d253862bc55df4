// Package chat 实现命令行与演示脚本共用的交互层：模式选择、逐行对话、
// 自主循环与固定步骤演示，输出格式与片段分隔线保持一致。
package chat
