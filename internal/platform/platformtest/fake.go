// Package platformtest provides an in-memory platform.Client for tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tg-scriptguard/internal/platform"
)

type key struct{ group, user int64 }

// Call is one recorded invocation.
type Call struct {
	Op      string
	ChatID  int64
	UserID  int64
	Message int
	Text    string
	Until   time.Time
}

// Fake records every call. Ban moves a user to kicked, so a later MemberStatus
// sees the effect, like the real platform would.
type Fake struct {
	mu      sync.Mutex
	calls   []Call
	status  map[key]platform.MemberStatus
	files   map[string][]byte
	errs    map[string]error
	lookups map[key]error
}

func New() *Fake {
	return &Fake{
		status:  make(map[key]platform.MemberStatus),
		files:   make(map[string][]byte),
		errs:    make(map[string]error),
		lookups: make(map[key]error),
	}
}

// SetStatus sets what MemberStatus returns for (group, user).
func (f *Fake) SetStatus(group, user int64, s platform.MemberStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[key{group, user}] = s
}

// FailLookup makes MemberStatus fail for (group, user).
func (f *Fake) FailLookup(group, user int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups[key{group, user}] = err
}

// Fail makes every call of op return err; a nil err clears it.
func (f *Fake) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

func (f *Fake) PutFile(fileID string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[fileID] = data
}

// Calls returns recorded calls, optionally filtered by op.
func (f *Fake) Calls(op string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *Fake) record(c Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.errs[c.Op]
}

func (f *Fake) SendDirect(_ context.Context, userID int64, text string) error {
	return f.record(Call{Op: "send_direct", ChatID: userID, Text: text})
}

func (f *Fake) Send(_ context.Context, chatID int64, text string) error {
	return f.record(Call{Op: "send", ChatID: chatID, Text: text})
}

func (f *Fake) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	return f.record(Call{Op: "delete", ChatID: chatID, Message: messageID})
}

func (f *Fake) Ban(_ context.Context, groupID, userID int64) error {
	if err := f.record(Call{Op: "ban", ChatID: groupID, UserID: userID}); err != nil {
		return err
	}
	f.SetStatus(groupID, userID, platform.StatusKicked)
	return nil
}

func (f *Fake) Unban(_ context.Context, groupID, userID int64) error {
	if err := f.record(Call{Op: "unban", ChatID: groupID, UserID: userID}); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status[key{groupID, userID}] == platform.StatusKicked {
		f.status[key{groupID, userID}] = platform.StatusLeft
	}
	return nil
}

func (f *Fake) Restrict(_ context.Context, groupID, userID int64, _ platform.Permissions, until time.Time) error {
	return f.record(Call{Op: "restrict", ChatID: groupID, UserID: userID, Until: until})
}

func (f *Fake) Unrestrict(_ context.Context, groupID, userID int64) error {
	return f.record(Call{Op: "unrestrict", ChatID: groupID, UserID: userID})
}

func (f *Fake) MemberStatus(_ context.Context, groupID, userID int64) (platform.MemberStatus, error) {
	if err := f.record(Call{Op: "member_status", ChatID: groupID, UserID: userID}); err != nil {
		return platform.StatusUnknown, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lookups[key{groupID, userID}]; err != nil {
		return platform.StatusUnknown, err
	}
	s, ok := f.status[key{groupID, userID}]
	if !ok {
		return platform.StatusLeft, nil
	}
	return s, nil
}

func (f *Fake) Download(_ context.Context, fileID string) ([]byte, error) {
	if err := f.record(Call{Op: "download", Text: fileID}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s not found", fileID)
	}
	return data, nil
}

func (f *Fake) ForwardMessage(_ context.Context, toChatID, fromChatID int64, messageID int) error {
	return f.record(Call{Op: "forward", ChatID: toChatID, UserID: fromChatID, Message: messageID})
}

var _ platform.Client = (*Fake)(nil)
