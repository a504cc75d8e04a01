package http

import (
	"crypto/tls"
	"net/http/httptrace"
	"time"
)

// TimingInfo breaks a request down into its phases.
type TimingInfo struct {
	StartTime time.Time

	DNSLookup    time.Duration
	TCPConnect   time.Duration
	TLSHandshake time.Duration
	// Sending is the time spent writing the request.
	Sending time.Duration
	// Waiting is the time to first byte: from the request being written to
	// the first response byte.
	Waiting time.Duration
	// Receiving is the time spent reading the body.
	Receiving time.Duration
	// Duration is Sending + Waiting + Receiving, excluding connection setup.
	Duration time.Duration
	// Total is wall time from start to the last body byte.
	Total time.Duration

	ConnReused bool
}

// timingTracer collects httptrace callbacks for a single request. The
// callbacks may run on transport goroutines; every field is written before
// GotFirstResponseByte, which happens before Client.Do returns.
type timingTracer struct {
	startTime    time.Time
	dnsStart     time.Time
	connectStart time.Time
	tlsStart     time.Time
	connected    time.Time
	wrote        time.Time
	firstByte    time.Time
	headersDone  time.Time

	info TimingInfo
}

func newTimingTracer() *timingTracer {
	return &timingTracer{}
}

func (t *timingTracer) start() {
	t.startTime = time.Now()
	t.info.StartTime = t.startTime
}

func (t *timingTracer) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			t.connected = time.Now()
			t.info.ConnReused = info.Reused
		},
		DNSStart: func(httptrace.DNSStartInfo) {
			t.dnsStart = time.Now()
		},
		DNSDone: func(httptrace.DNSDoneInfo) {
			if !t.dnsStart.IsZero() {
				t.info.DNSLookup = time.Since(t.dnsStart)
			}
		},
		ConnectStart: func(string, string) {
			t.connectStart = time.Now()
		},
		ConnectDone: func(_, _ string, err error) {
			if err == nil && !t.connectStart.IsZero() {
				t.info.TCPConnect = time.Since(t.connectStart)
			}
		},
		TLSHandshakeStart: func() {
			t.tlsStart = time.Now()
		},
		TLSHandshakeDone: func(_ tls.ConnectionState, err error) {
			if err == nil && !t.tlsStart.IsZero() {
				t.info.TLSHandshake = time.Since(t.tlsStart)
			}
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			t.wrote = time.Now()
		},
		GotFirstResponseByte: func() {
			t.firstByte = time.Now()
		},
	}
}

// headers marks the end of the response headers.
func (t *timingTracer) headers() {
	t.headersDone = time.Now()
	if t.firstByte.IsZero() {
		t.firstByte = t.headersDone
	}
}

func (t *timingTracer) finish() TimingInfo {
	end := time.Now()

	sendStart := t.connected
	if sendStart.IsZero() {
		sendStart = t.startTime
	}
	wrote := t.wrote
	if wrote.IsZero() {
		wrote = sendStart
	}

	t.info.Sending = nonNegative(wrote.Sub(sendStart))
	t.info.Waiting = nonNegative(t.firstByte.Sub(wrote))
	t.info.Receiving = nonNegative(end.Sub(t.firstByte))
	t.info.Duration = t.info.Sending + t.info.Waiting + t.info.Receiving
	t.info.Total = end.Sub(t.startTime)
	return t.info
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
