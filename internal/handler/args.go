package handler

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// errUsage makes the dispatcher answer with the command's usage line.
var errUsage = errors.New("usage")

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errUsage
	}
	return id, nil
}

// groupArg reads args[i] as a group id, defaulting to the current group.
func groupArg(in Inbound, args []string, i int) (int64, error) {
	if i < len(args) {
		return parseID(args[i])
	}
	if !in.Private {
		return in.ChatID, nil
	}
	return 0, errUsage
}

func userArg(args []string, i int) (int64, error) {
	if i >= len(args) {
		return 0, errUsage
	}
	return parseID(args[i])
}

// parseDuration accepts Go durations plus a whole-day suffix, e.g. "90m" or "2d".
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, errUsage
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errUsage
	}
	return d, nil
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, errUsage
}
