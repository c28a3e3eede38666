package util

import "errors"

var ErrEmptyCommand = errors.New("simulation command is empty")
