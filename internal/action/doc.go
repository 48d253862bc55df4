// Package action 定义动作提供者的契约：每个 Provider 暴露一组带有 JSON Schema
// 参数说明的 Action，智能体通过工具调用执行它们。具体实现位于子包中。
package action
