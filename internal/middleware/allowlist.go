package middleware

import (
	"net"
	"net/http"
	"os"
	"strings"

	"sentinel-api/internal/logger"
)

// 文档注释：管理接口来源白名单（IP/CIDR）
// 背景：/reload-boroughs 等管理接口除 token 外再限制来源地址。
// 约束：来源以 RemoteAddr 为准；未配置任何条目时放行全部；支持 IPv4/IPv6。
type Allowlist struct {
	ips   map[string]struct{}
	cidrs []*net.IPNet
}

// ParseAllowlist：逗号分隔的 IP 或 CIDR，非法条目忽略
func ParseAllowlist(list string) *Allowlist {
	a := &Allowlist{ips: map[string]struct{}{}}
	for _, p := range strings.Split(list, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.Contains(p, "/") {
			if _, n, err := net.ParseCIDR(p); err == nil {
				a.cidrs = append(a.cidrs, n)
				continue
			}
		} else if ip := net.ParseIP(p); ip != nil {
			a.ips[ip.String()] = struct{}{}
			continue
		}
		logger.L().Warn("allowlist_bad_entry", "entry", p)
	}
	return a
}

// AllowlistFromEnv：ADMIN_ALLOW_IPS
func AllowlistFromEnv() *Allowlist { return ParseAllowlist(os.Getenv("ADMIN_ALLOW_IPS")) }

func (a *Allowlist) Empty() bool { return len(a.ips) == 0 && len(a.cidrs) == 0 }

func (a *Allowlist) Allowed(remoteAddr string) bool {
	if a.Empty() {
		return true
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	if _, ok := a.ips[ip.String()]; ok {
		return true
	}
	for _, n := range a.cidrs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func (a *Allowlist) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Allowed(r.RemoteAddr) {
			logger.L().Warn("allowlist_block", "remote", r.RemoteAddr, "path", r.URL.Path)
			http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
