package validator

import (
	"net"
	"strings"
)

// IsValidIP 验证 IP 地址格式（支持 IPv4 和 IPv6）
func IsValidIP(ip string) bool {
	return ip != "" && net.ParseIP(ip) != nil
}

// NormalizeIP drops an IPv6 zone (fe80::1%eth0 -> fe80::1) and maps
// IPv4-in-IPv6 addresses to their dotted form, so one client always yields
// the same key.
func NormalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if idx := strings.IndexByte(ip, '%'); idx != -1 {
		ip = ip[:idx]
	}
	if parsed := net.ParseIP(ip); parsed != nil {
		return parsed.String()
	}
	return ip
}

// IPOrDefault returns the normalized ip, or def when ip is not an address
func IPOrDefault(ip, def string) string {
	normalized := NormalizeIP(ip)
	if IsValidIP(normalized) {
		return normalized
	}
	return def
}
