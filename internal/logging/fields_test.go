package logging

import (
	"errors"
	"testing"
	"time"
)

func TestNewFieldsEmpty(t *testing.T) {
	f := NewFields()
	if len(f) != 0 {
		t.Fatalf("NewFields() should be empty, got %d fields", len(f))
	}
}

func TestFieldsChaining(t *testing.T) {
	f := NewFields().
		Component("jobcontroller").
		Operation("create").
		Resource("job", "job-123").
		Duration(150 * time.Millisecond).
		Count(3)

	want := map[string]interface{}{
		"component":     "jobcontroller",
		"operation":     "create",
		"resource_type": "job",
		"resource_name": "job-123",
		"duration_ms":   int64(150),
		"count":         3,
	}
	for k, v := range want {
		if f[k] != v {
			t.Errorf("f[%q] = %v, want %v", k, f[k], v)
		}
	}
}

func TestFieldsResourceWithoutName(t *testing.T) {
	f := NewFields().Resource("job", "")
	if _, ok := f["resource_name"]; ok {
		t.Error("Resource() should not set resource_name when empty")
	}
}

func TestFieldsErrorNil(t *testing.T) {
	f := NewFields().Error(nil)
	if _, ok := f["error"]; ok {
		t.Error("Error(nil) should not set error field")
	}
	f = NewFields().Error(errors.New("boom"))
	if f["error"] != "boom" {
		t.Errorf("Error() = %v, want boom", f["error"])
	}
}

func TestKeysAndValues(t *testing.T) {
	f := NewFields().Component("store").Operation("put")
	kv := f.KeysAndValues()
	if len(kv) != 4 {
		t.Fatalf("KeysAndValues() len = %d, want 4", len(kv))
	}
}

func TestDatabaseFields(t *testing.T) {
	f := DatabaseFields("put", "jobs")
	if f["component"] != "database" || f["operation"] != "put" || f["resource_type"] != "table" || f["resource_name"] != "jobs" {
		t.Errorf("DatabaseFields() = %v", f)
	}
}

func TestKubernetesFields(t *testing.T) {
	f := KubernetesFields("create", "job", "job-123", "ims")
	if f["namespace"] != "ims" {
		t.Errorf("KubernetesFields() namespace = %v, want ims", f["namespace"])
	}
	f = KubernetesFields("create", "job", "job-123", "")
	if _, ok := f["namespace"]; ok {
		t.Error("KubernetesFields() should not set namespace when empty")
	}
}

func TestPerformanceFields(t *testing.T) {
	f := PerformanceFields("probe_node", 250*time.Millisecond, true)
	if f["duration_ms"] != int64(250) || f["success"] != true {
		t.Errorf("PerformanceFields() = %v", f)
	}
}
