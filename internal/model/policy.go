package model

// FallbackMode selects the owner population that applies when no explicit
// ownership was ever declared for a path.
type FallbackMode string

const (
	FallbackNone          FallbackMode = "NONE"
	FallbackAllUsers      FallbackMode = "ALL_USERS"
	FallbackProjectOwners FallbackMode = "PROJECT_OWNERS"
)

// ImplicitMode controls whether the uploader of the current patch set
// counts as having approved their own upload.
type ImplicitMode string

const (
	// ImplicitOff never grants implicit approval.
	ImplicitOff ImplicitMode = "OFF"

	// ImplicitOn grants implicit approval to the uploader only when the
	// uploader is also the change owner.
	ImplicitOn ImplicitMode = "ON"

	// ImplicitForced grants implicit approval to the uploader
	// unconditionally, bypassing self-approval exclusion.
	ImplicitForced ImplicitMode = "FORCED"
)
