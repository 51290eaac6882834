package insights

import (
	"errors"
	"fmt"
)

// InfoCmd indicates the client was invoked for information only (for
// example --version or --help). The information has been printed and the
// invocation should exit cleanly.
type InfoCmd struct {
	msg string
}

func NewInfoCmdError(cmd string) InfoCmd {
	return InfoCmd{
		msg: fmt.Sprintf("insights-client called with info cmd %s", cmd),
	}
}

func (e InfoCmd) Error() string {
	return e.msg
}

func (e InfoCmd) Is(target error) bool {
	if _, ok := target.(InfoCmd); ok {
		return true
	}
	return false
}

func IsInfoCmd(err error) bool {
	return errors.Is(err, InfoCmd{})
}
