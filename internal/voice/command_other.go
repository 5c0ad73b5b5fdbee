//go:build !unix

package voice

import (
	"errors"
	"os"
)

var errNoSuspend = errors.New("voice: process suspension not supported")

func suspend(*os.Process) error { return errNoSuspend }

func resume(*os.Process) error { return errNoSuspend }
