//go:build windows

package hotkey

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	wmHotkey   = 0x0312
	wmQuit     = 0x0012
	wmApp      = 0x8000
	wmRequest  = wmApp + 1
	pmNoRemove = 0x0000
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procRegisterHotKey     = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey   = user32.NewProc("UnregisterHotKey")
	procGetMessageW        = user32.NewProc("GetMessageW")
	procPeekMessageW       = user32.NewProc("PeekMessageW")
	procPostThreadMessageW = user32.NewProc("PostThreadMessageW")
)

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
}

// request runs on the message thread; RegisterHotKey binds to the calling thread.
type request struct {
	fn    func() error
	reply chan error
}

type windowsService struct {
	threadID  uint32
	requests  chan request
	triggered chan Token

	mu     sync.Mutex
	nextID Token
	combos map[Token]Combo
	closed bool
	done   chan struct{}
}

func newPlatformService() (Service, error) {
	s := &windowsService{
		requests:  make(chan request, 8),
		triggered: make(chan Token, 16),
		combos:    make(map[Token]Combo),
		done:      make(chan struct{}),
	}

	ready := make(chan uint32)
	go s.run(ready)
	s.threadID = <-ready

	return s, nil
}

func (s *windowsService) run(ready chan<- uint32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(s.done)
	defer close(s.triggered)

	// Creates the thread's message queue before anyone posts to it.
	var m msg
	procPeekMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, wmApp, wmApp, pmNoRemove)
	ready <- windows.GetCurrentThreadId()

	for {
		r, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(r) <= 0 {
			s.unregisterAll()
			return
		}

		switch m.message {
		case wmHotkey:
			select {
			case s.triggered <- Token(m.wParam):
			default:
			}
		case wmRequest:
			s.drain()
		}
	}
}

func (s *windowsService) drain() {
	for {
		select {
		case req := <-s.requests:
			req.reply <- req.fn()
		default:
			return
		}
	}
}

func (s *windowsService) do(fn func() error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	req := request{fn: fn, reply: make(chan error, 1)}
	select {
	case s.requests <- req:
	case <-s.done:
		return ErrClosed
	}
	procPostThreadMessageW.Call(uintptr(s.threadID), wmRequest, 0, 0)

	select {
	case err := <-req.reply:
		return err
	case <-s.done:
		return ErrClosed
	}
}

func (s *windowsService) Register(c Combo) (Token, error) {
	s.mu.Lock()
	for _, existing := range s.combos {
		if existing == c {
			s.mu.Unlock()
			return 0, fmt.Errorf("%w: %s", ErrAlreadyRegistered, c)
		}
	}
	s.nextID++
	tok := s.nextID
	s.mu.Unlock()

	err := s.do(func() error {
		r, _, err := procRegisterHotKey.Call(0, uintptr(tok), uintptr(c.Modifiers|ModNoRepeat), uintptr(c.Key))
		if r == 0 {
			return fmt.Errorf("%w: %s: %v", ErrAlreadyRegistered, c, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.combos[tok] = c
	s.mu.Unlock()
	return tok, nil
}

func (s *windowsService) Unregister(t Token) error {
	s.mu.Lock()
	_, ok := s.combos[t]
	delete(s.combos, t)
	s.mu.Unlock()
	if !ok {
		return ErrUnknownToken
	}

	return s.do(func() error {
		procUnregisterHotKey.Call(0, uintptr(t))
		return nil
	})
}

func (s *windowsService) unregisterAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok := range s.combos {
		procUnregisterHotKey.Call(0, uintptr(tok))
	}
	s.combos = make(map[Token]Combo)
}

func (s *windowsService) Triggered() <-chan Token {
	return s.triggered
}

func (s *windowsService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	procPostThreadMessageW.Call(uintptr(s.threadID), wmQuit, 0, 0)
	<-s.done
	return nil
}
