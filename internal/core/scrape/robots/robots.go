// Package robots answers robots.txt allow checks with a per-host cache.
package robots

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const cacheTTL = 30 * time.Minute

type cached struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

type Service struct {
	mu     sync.Mutex
	hosts  map[string]cached
	client *http.Client
}

func New() *Service {
	return &Service{
		hosts:  make(map[string]cached),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// IsAllowed reports whether the agent may fetch the URL. Unreachable or
// malformed robots.txt files allow everything, matching crawler convention.
func (s *Service) IsAllowed(rawURL, agent string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	data := s.dataFor(u)
	if data == nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return data.TestAgent(path, agent)
}

func (s *Service) dataFor(u *url.URL) *robotstxt.RobotsData {
	hostKey := u.Scheme + "://" + u.Host

	s.mu.Lock()
	entry, ok := s.hosts[hostKey]
	s.mu.Unlock()
	if ok && time.Since(entry.fetchedAt) < cacheTTL {
		return entry.data
	}

	data := s.fetch(hostKey)
	s.mu.Lock()
	s.hosts[hostKey] = cached{data: data, fetchedAt: time.Now()}
	s.mu.Unlock()
	return data
}

func (s *Service) fetch(hostKey string) *robotstxt.RobotsData {
	resp, err := s.client.Get(fmt.Sprintf("%s/robots.txt", hostKey))
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data
}
