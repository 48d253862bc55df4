package chat

import (
	"errors"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// ErrInterrupted 表示用户按下了 Ctrl-C 或输入流已结束。
var ErrInterrupted = errors.New("chat: interrupted")

// Prompter 抽象终端输入，便于测试替换。
type Prompter interface {
	AskInput(label string) (string, error)
}

// SurveyPrompter 使用 survey 读取终端输入。
type SurveyPrompter struct{}

// AskInput 显示提示并读取一行输入，Ctrl-C 转换为 ErrInterrupted。
func (SurveyPrompter) AskInput(label string) (string, error) {
	var answer string
	if err := survey.AskOne(&survey.Input{Message: label}, &answer); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return "", ErrInterrupted
		}
		return "", err
	}
	return answer, nil
}

// StubPrompter 按顺序返回预置输入，用尽后返回 ErrInterrupted。
type StubPrompter struct {
	Inputs []string
	Labels []string
}

// AskInput 返回下一条预置输入。
func (s *StubPrompter) AskInput(label string) (string, error) {
	s.Labels = append(s.Labels, label)
	if len(s.Inputs) == 0 {
		return "", ErrInterrupted
	}
	v := s.Inputs[0]
	s.Inputs = s.Inputs[1:]
	return v, nil
}
