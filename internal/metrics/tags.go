package metrics

import "fmt"

// Tag creates a formatted DataDog tag string in "key:value" format.
func Tag(key, value string) string {
	return fmt.Sprintf("%s:%s", key, value)
}

func TenantTag(tenant string) string {
	return Tag("tenant", tenant)
}

// StatusTag creates a status tag (hit/miss/ok/error).
func StatusTag(status string) string {
	return Tag("status", status)
}

// CircuitStateTag creates a circuit breaker state tag.
func CircuitStateTag(state string) string {
	return Tag("circuit_state", state)
}
