package model

import "testing"

func TestNormalizeSSHContainersCreate(t *testing.T) {
	out, err := NormalizeSSHContainers(JobTypeCreate, false, nil)
	if err != nil || len(out) != 0 {
		t.Fatalf("create/no-debug/no-input = %v, %v, want empty, nil", out, err)
	}

	out, err = NormalizeSSHContainers(JobTypeCreate, true, nil)
	if err != nil || len(out) != 1 || out[0].Name != "debug" {
		t.Fatalf("create/debug = %v, %v, want [{debug false}]", out, err)
	}

	if _, err := NormalizeSSHContainers(JobTypeCreate, false, []SSHContainer{{Name: "x"}}); err == nil {
		t.Fatal("create with user-supplied ssh_containers should error")
	}
}

func TestNormalizeSSHContainersCustomize(t *testing.T) {
	out, err := NormalizeSSHContainers(JobTypeCustomize, false, nil)
	if err != nil || len(out) != 1 || out[0].Name != "customize" {
		t.Fatalf("customize/no-input = %v, %v, want [{customize false}]", out, err)
	}

	in := []SSHContainer{{Name: "mine", Jail: true}}
	out, err = NormalizeSSHContainers(JobTypeCustomize, false, in)
	if err != nil || len(out) != 1 || out[0].Name != "mine" {
		t.Fatalf("customize with explicit container = %v, %v", out, err)
	}
}

func TestNormalizeSSHContainersAtMostOne(t *testing.T) {
	in := []SSHContainer{{Name: "a"}, {Name: "b"}}
	if _, err := NormalizeSSHContainers(JobTypeCustomize, false, in); err == nil {
		t.Fatal("more than one ssh_container should error")
	}
}

func TestDefaultKernelFileName(t *testing.T) {
	if got := DefaultKernelFileName(ArchX86_64); got != KernelFileNameX86 {
		t.Errorf("x86_64 = %q, want %q", got, KernelFileNameX86)
	}
	if got := DefaultKernelFileName(ArchAarch64); got != KernelFileNameAarch64 {
		t.Errorf("aarch64 = %q, want %q", got, KernelFileNameAarch64)
	}
}

func TestResolveRequireDKMS(t *testing.T) {
	// aarch64 always forces true, regardless of request or recipe default.
	falseVal := false
	if !ResolveRequireDKMS(ArchAarch64, &falseVal, false) {
		t.Error("aarch64 must force require_dkms=true even when explicitly false")
	}
	if !ResolveRequireDKMS(ArchAarch64, nil, false) {
		t.Error("aarch64 must force require_dkms=true with no request")
	}

	trueVal := true
	if got := ResolveRequireDKMS(ArchX86_64, &trueVal, false); !got {
		t.Error("explicit true on x86_64 should be honored")
	}
	if got := ResolveRequireDKMS(ArchX86_64, nil, true); !got {
		t.Error("x86_64 with no request should inherit recipe default")
	}
	if got := ResolveRequireDKMS(ArchX86_64, nil, false); got {
		t.Error("x86_64 with no request and recipe default false should be false")
	}
}

func TestJobStatusIsTerminal(t *testing.T) {
	for _, s := range []JobStatus{JobStatusError, JobStatusSuccess} {
		if !s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = false, want true", s)
		}
	}
	for _, s := range []JobStatus{JobStatusCreating, JobStatusWaitingOnUser, JobStatusBuildingImage} {
		if s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = true, want false", s)
		}
	}
}

func TestValidJobStatus(t *testing.T) {
	if !ValidJobStatus(JobStatusFetchingRecipe) {
		t.Error("fetching_recipe should be valid")
	}
	if ValidJobStatus(JobStatus("bogus")) {
		t.Error("bogus should not be valid")
	}
}
