package pipeline

import "fmt"

// NoticeKind classifies a user-facing message.
type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeSuccess
	NoticeError
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeSuccess:
		return "success"
	case NoticeError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a message the presentation layer shows to the observer.
type Notice struct {
	Kind NoticeKind
	Text string
}

// CompletionNotice is the summary shown when a run finishes, whichever path noticed it.
func CompletionNotice(sent, failed int) Notice {
	return Notice{Kind: NoticeSuccess, Text: fmt.Sprintf("Pipeline complete: %d sent, %d failed", sent, failed)}
}

// ErrorNotice wraps failure text verbatim.
func ErrorNotice(text string) Notice {
	return Notice{Kind: NoticeError, Text: text}
}

// InfoNotice is a neutral confirmation.
func InfoNotice(text string) Notice {
	return Notice{Kind: NoticeInfo, Text: text}
}
