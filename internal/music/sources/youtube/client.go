package youtube

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	_ "github.com/bdandy/go-socks4"
	youtube "github.com/kkdai/youtube/v2"
	"go.uber.org/zap"
	"golang.org/x/net/proxy"
)

const clientTimeout = 15 * time.Second

// NewClient builds a kkdai client, dialing through proxyStr when set.
// Supported schemes are http, https, socks5 and socks4.
func NewClient(proxyStr string, log *zap.Logger) *youtube.Client {
	transport := proxyTransport(proxyStr, log)
	if transport == nil {
		return &youtube.Client{HTTPClient: &http.Client{Timeout: clientTimeout}}
	}
	return &youtube.Client{
		HTTPClient: &http.Client{
			Timeout:   clientTimeout,
			Transport: transport,
		},
	}
}

func proxyTransport(proxyStr string, log *zap.Logger) *http.Transport {
	if proxyStr == "" {
		return nil
	}

	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		log.Warn("Invalid proxy format, going direct", zap.Error(err))
		return nil
	}

	switch proxyURL.Scheme {
	case "http", "https":
		log.Info("Using HTTP proxy", zap.String("host", proxyURL.Host))
		return &http.Transport{Proxy: http.ProxyURL(proxyURL)}

	case "socks5":
		log.Info("Using SOCKS5 proxy", zap.String("host", proxyURL.Host))
		auth := &proxy.Auth{}
		if proxyURL.User != nil {
			auth.User = proxyURL.User.Username()
			if pass, ok := proxyURL.User.Password(); ok {
				auth.Password = pass
			}
		}
		dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, &net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 10 * time.Second,
		})
		if err != nil {
			log.Warn("SOCKS5 dialer error, going direct", zap.Error(err))
			return nil
		}
		return &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
		}

	case "socks4":
		// go-socks4 registers the scheme with proxy.FromURL.
		log.Info("Using SOCKS4 proxy", zap.String("host", proxyURL.Host))
		dialer, err := proxy.FromURL(proxyURL, &net.Dialer{Timeout: 10 * time.Second})
		if err != nil {
			log.Warn("SOCKS4 dialer error, going direct", zap.Error(err))
			return nil
		}
		return &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
		}

	default:
		log.Warn("Unsupported proxy scheme, going direct", zap.String("scheme", proxyURL.Scheme))
		return nil
	}
}
