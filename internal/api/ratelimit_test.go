package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestIPLimitersDefaults(t *testing.T) {
	l := newIPLimiters(0, 0)
	if l.refill != rate.Limit(defaultRefillPerSec) {
		t.Errorf("refill = %v, want %v", l.refill, defaultRefillPerSec)
	}
	if l.burst != defaultBurst {
		t.Errorf("burst = %v, want %v", l.burst, defaultBurst)
	}
}

func TestIPLimitersBucketExhaustion(t *testing.T) {
	l := newIPLimiters(1, 2)

	for i := range 2 {
		if !l.get("203.0.113.1").Allow() {
			t.Fatalf("request %d denied within burst", i)
		}
	}
	if l.get("203.0.113.1").Allow() {
		t.Error("request beyond burst allowed")
	}

	// Other IPs keep their own bucket.
	if !l.get("203.0.113.2").Allow() {
		t.Error("fresh IP denied")
	}
}

func TestIPLimitersPrunesIdleBuckets(t *testing.T) {
	l := newIPLimiters(1, 1)

	l.get("203.0.113.1")
	l.buckets["203.0.113.1"].lastSeen = time.Now().Add(-2 * limiterIdleExpiry)
	l.nextPrune = time.Now().Add(-time.Second)

	l.get("203.0.113.2")

	if _, ok := l.buckets["203.0.113.1"]; ok {
		t.Error("idle bucket survived pruning")
	}
	if _, ok := l.buckets["203.0.113.2"]; !ok {
		t.Error("active bucket was pruned")
	}
}

func TestSecondsPerToken(t *testing.T) {
	tests := []struct {
		name   string
		refill rate.Limit
		want   string
	}{
		{name: "one per second", refill: 1, want: "1"},
		{name: "faster than one per second", refill: 10, want: "1"},
		{name: "one per two seconds", refill: 0.5, want: "2"},
		{name: "one per three seconds rounds up", refill: 0.4, want: "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := secondsPerToken(tt.refill); got != tt.want {
				t.Errorf("secondsPerToken(%v) = %q, want %q", tt.refill, got, tt.want)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "198.51.100.10:4567",
			want:       "198.51.100.10",
		},
		{
			name:       "headers ignored without trust",
			remoteAddr: "198.51.100.10:4567",
			headers:    map[string]string{"X-Real-IP": "203.0.113.9"},
			want:       "198.51.100.10",
		},
		{
			name:       "x-real-ip wins when trusted",
			remoteAddr: "198.51.100.10:4567",
			headers:    map[string]string{"X-Real-IP": "203.0.113.9"},
			trustProxy: true,
			want:       "203.0.113.9",
		},
		{
			name:       "forwarded chain takes first hop",
			remoteAddr: "198.51.100.10:4567",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"},
			trustProxy: true,
			want:       "203.0.113.9",
		},
		{
			name:       "non-ip header value falls through",
			remoteAddr: "198.51.100.10:4567",
			headers:    map[string]string{"X-Real-IP": "evil-string"},
			trustProxy: true,
			want:       "198.51.100.10",
		},
		{
			name:       "unparseable remote addr returned raw",
			remoteAddr: "bad-addr",
			want:       "bad-addr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			if got := clientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
