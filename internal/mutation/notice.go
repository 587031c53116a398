package mutation

import (
	"fmt"
	"sync"
	"time"
)

// Notice is a non-blocking message about a failed action
type Notice struct {
	Action  string    `json:"action"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
	Err     error     `json:"-"`
}

// Notifier surfaces notices to the user
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

func failed(action string, err error) Notice {
	return Notice{
		Action:  action,
		Message: fmt.Sprintf("%s failed. Please try again.", action),
		At:      time.Now(),
		Err:     err,
	}
}

func incomplete(action string, err error) Notice {
	return Notice{
		Action:  action,
		Message: fmt.Sprintf("%s did not fully complete. Please refresh.", action),
		At:      time.Now(),
		Err:     err,
	}
}

// DefaultNoticeLimit is the NoticeBoard capacity when none is given
const DefaultNoticeLimit = 50

// NoticeBoard keeps the most recent notices until drained
type NoticeBoard struct {
	mu      sync.Mutex
	limit   int
	notices []Notice
}

// NewNoticeBoard returns a board keeping at most limit notices
func NewNoticeBoard(limit int) *NoticeBoard {
	if limit <= 0 {
		limit = DefaultNoticeLimit
	}
	return &NoticeBoard{limit: limit}
}

func (b *NoticeBoard) Notify(n Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notices = append(b.notices, n)
	if over := len(b.notices) - b.limit; over > 0 {
		b.notices = b.notices[over:]
	}
}

// Drain returns and forgets every pending notice, oldest first
func (b *NoticeBoard) Drain() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.notices
	b.notices = nil
	return out
}

// Len returns the number of pending notices
func (b *NoticeBoard) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.notices)
}
