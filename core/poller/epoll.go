//go:build linux

package poller

import "golang.org/x/sys/unix"

// EpollPoller is the Linux epoll implementation.
type EpollPoller struct {
	epfd   int
	events []unix.EpollEvent
}

// NewPoller creates the platform poller (epoll).
func NewPoller() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &EpollPoller{
		epfd:   epfd,
		events: make([]unix.EpollEvent, 1024),
	}, nil
}

func (p *EpollPoller) ctl(op int, fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, op, fd, &ev)
}

// Add registers fd for level-triggered read readiness. EPOLLRDHUP surfaces
// peer shutdown as a readable event.
func (p *EpollPoller) Add(fd int) error {
	return p.ctl(unix.EPOLL_CTL_ADD, fd, unix.EPOLLIN|unix.EPOLLRDHUP)
}

// ModReadWrite re-arms fd for both read and write readiness.
func (p *EpollPoller) ModReadWrite(fd int) error {
	return p.ctl(unix.EPOLL_CTL_MOD, fd, unix.EPOLLIN|unix.EPOLLOUT|unix.EPOLLRDHUP)
}

// ModRead drops write interest.
func (p *EpollPoller) ModRead(fd int) error {
	return p.ctl(unix.EPOLL_CTL_MOD, fd, unix.EPOLLIN|unix.EPOLLRDHUP)
}

// Remove unregisters fd.
func (p *EpollPoller) Remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks for events up to timeoutMs.
func (p *EpollPoller) Wait(timeoutMs int) ([]Event, error) {
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMs)
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
			FD:       int(ev.Fd),
			Readable: ev.Events&(unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			Writable: ev.Events&unix.EPOLLOUT != 0,
		})
	}
	return out, nil
}

// Close closes the epoll fd.
func (p *EpollPoller) Close() error {
	return unix.Close(p.epfd)
}
