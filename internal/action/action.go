package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	xerrors "walrus-agent/internal/errors"
	"walrus-agent/internal/web3"
)

// InvokeFunc 执行一个动作并返回交给大模型的文本结果。
type InvokeFunc func(ctx context.Context, wallet web3.WalletProvider, args json.RawMessage) (string, error)

// Action 描述一个可被智能体调用的链上或链下操作。
type Action struct {
	Name        string
	Description string
	Schema      map[string]any
	Invoke      InvokeFunc
}

// Provider 是一组相关动作的集合。
type Provider interface {
	Name() string
	Actions() []Action
	SupportsNetwork(network web3.Network) bool
}

// Property 描述 JSON Schema 中的一个字符串参数。
type Property struct {
	Name        string
	Description string
	Required    bool
}

// ObjectSchema 根据参数列表生成 JSON Schema 对象。
func ObjectSchema(props ...Property) map[string]any {
	properties := make(map[string]any, len(props))
	required := make([]string, 0, len(props))
	for _, prop := range props {
		properties[prop.Name] = map[string]any{
			"type":        "string",
			"description": prop.Description,
		}
		if prop.Required {
			required = append(required, prop.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Decode 将工具参数解析为目标结构体，空参数视为 {}。
func Decode(args json.RawMessage, out any) error {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "工具参数不是有效的 JSON")
	}
	return nil
}

// ParseAddress 校验并解析十六进制地址参数。
func ParseAddress(field, value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) {
		return common.Address{}, xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("%s 不是有效的地址: %q", field, value))
	}
	return common.HexToAddress(value), nil
}

// Failed 以 ACTION_FAILURE 包装动作执行错误，保留已有的错误码。
func Failed(action string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := xerrors.From(err); ok {
		return err
	}
	return xerrors.Wrap(xerrors.CodeActionFailure, err, fmt.Sprintf("动作 %s 执行失败", action),
		xerrors.WithMetadata("action", action))
}
