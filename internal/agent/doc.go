// Package agent 实现工具调用型智能体：每轮对话在大模型推理与工具执行之间循环，
// 直到模型给出不含工具调用的回答，并以迭代器的形式惰性产出文本片段。
package agent
