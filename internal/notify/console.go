package notify

import (
	"github.com/pterm/pterm"
)

// Console 命令行下的通知输出
type Console struct{}

// Notify 实现 Notifier
func (Console) Notify(message string, severity Severity) {
	switch severity {
	case SeveritySuccess:
		pterm.Success.Println(message)
	case SeverityWarning:
		pterm.Warning.Println(message)
	case SeverityError:
		pterm.Error.Println(message)
	default:
		pterm.Info.Println(message)
	}
}
