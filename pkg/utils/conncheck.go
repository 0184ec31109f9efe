package utils

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/mpapenbr/trackline/log"
)

var (
	dbURLRegex   = regexp.MustCompile(`^(postgres|postgresql|pgx5)://(.*@)?(?P<host>[^/:?]+)(:(?P<port>\d+))?(/.*)?$`)
	natsURLRegex = regexp.MustCompile(`^(nats|tls)://(.*@)?(?P<host>[^/:?,]+)(:(?P<port>\d+))?/?$`)
)

// WaitForTCP retries to connect to addr until it succeeds, the timeout is
// reached or ctx is done.
func WaitForTCP(ctx context.Context, addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	log.Debug("wait for tcp connection",
		log.String("addr", addr),
		log.String("timeout", timeout.String()))
	var d net.Dialer
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			log.Debug("tcp connection successful",
				log.String("addr", addr),
				log.String("duration", time.Since(start).String()))
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s could not be reached after %v", addr, timeout)
		case <-ticker.C:
		}
	}
}

// ExtractFromDBURL returns host:port of a postgres connection url.
// An empty string is returned if url is not a postgres url.
func ExtractFromDBURL(url string) string {
	return extractAddr(dbURLRegex, url, "5432")
}

// ExtractFromNatsURL returns host:port of the first server of a NATS url.
func ExtractFromNatsURL(url string) string {
	first, _, _ := strings.Cut(url, ",")
	return extractAddr(natsURLRegex, strings.TrimSpace(first), "4222")
}

func extractAddr(re *regexp.Regexp, url, defaultPort string) string {
	param := resolveRegex(re, url)
	if param["host"] == "" {
		return ""
	}
	port := param["port"]
	if port == "" {
		port = defaultPort
	}
	return net.JoinHostPort(param["host"], port)
}

func resolveRegex(re *regexp.Regexp, url string) (paramsMap map[string]string) {
	match := re.FindStringSubmatch(url)
	paramsMap = make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(match) {
			paramsMap[name] = match[i]
		}
	}
	return paramsMap
}
