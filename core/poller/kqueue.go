//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package poller

import "golang.org/x/sys/unix"

// KqueuePoller is the BSD/macOS kqueue implementation.
type KqueuePoller struct {
	kq     int
	events []unix.Kevent_t
}

// NewPoller creates the platform poller (kqueue).
func NewPoller() (Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	return &KqueuePoller{
		kq:     kq,
		events: make([]unix.Kevent_t, 1024),
	}, nil
}

func (p *KqueuePoller) change(fd int, filter int16, flags uint16) error {
	ev := unix.Kevent_t{Filter: filter, Flags: flags}
	unix.SetKevent(&ev, fd, int(filter), int(flags))
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{ev}, nil, nil)
	return err
}

// Add registers fd for read readiness.
func (p *KqueuePoller) Add(fd int) error {
	return p.change(fd, unix.EVFILT_READ, unix.EV_ADD)
}

// ModReadWrite additionally enables the write filter.
func (p *KqueuePoller) ModReadWrite(fd int) error {
	return p.change(fd, unix.EVFILT_WRITE, unix.EV_ADD)
}

// ModRead removes the write filter.
func (p *KqueuePoller) ModRead(fd int) error {
	err := p.change(fd, unix.EVFILT_WRITE, unix.EV_DELETE)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

// Remove unregisters both filters.
func (p *KqueuePoller) Remove(fd int) error {
	_ = p.change(fd, unix.EVFILT_WRITE, unix.EV_DELETE)
	err := p.change(fd, unix.EVFILT_READ, unix.EV_DELETE)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

// Wait blocks for events up to timeoutMs.
func (p *KqueuePoller) Wait(timeoutMs int) ([]Event, error) {
	ts := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
	n, err := unix.Kevent(p.kq, nil, p.events, &ts)
	if err != nil && err != unix.EINTR {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		ev := p.events[i]
		out = append(out, Event{
			FD:       int(ev.Ident),
			Readable: ev.Filter == unix.EVFILT_READ,
			Writable: ev.Filter == unix.EVFILT_WRITE,
		})
	}
	return out, nil
}

// Close closes the kqueue fd.
func (p *KqueuePoller) Close() error {
	return unix.Close(p.kq)
}
