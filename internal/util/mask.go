package util

import "strings"

// MaskEmail reduce un email a una forma segura para logs: conserva la primera
// letra del local part y del primer label del dominio. Entradas sin arroba se
// tratan como identificadores opacos.
func MaskEmail(raw string) string {
	addr := strings.ToLower(strings.TrimSpace(raw))
	local, domain, found := strings.Cut(addr, "@")
	if !found || local == "" {
		return maskOpaque(addr)
	}
	if len(local) > 1 {
		local = local[:1] + "…"
	}
	labels := strings.Split(domain, ".")
	if len(labels) > 0 && len(labels[0]) > 1 {
		labels[0] = labels[0][:1] + "…"
	}
	return local + "@" + strings.Join(labels, ".")
}

func maskOpaque(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 3:
		return "***"
	default:
		return s[:1] + "…" + s[len(s)-1:]
	}
}
