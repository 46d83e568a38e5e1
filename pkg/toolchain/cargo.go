package toolchain

import (
	"strconv"

	"github.com/crossforge/crossforge/pkg/config"
	"github.com/crossforge/crossforge/pkg/platform"
)

// BuildInvocation assembles the driver invocation for one target:
// `<command> <build_args...> [--target <triple>]` plus the profile
// environment. The native fallback target omits the --target flag so the
// driver builds for its own host.
func BuildInvocation(m *config.Manifest, target platform.Target) Invocation {
	args := append([]string{}, m.Toolchain.BuildArgs...)
	if triple := target.Triple(); triple != "" {
		args = append(args, "--target", triple)
	}
	return Invocation{
		Command: m.Toolchain.Command,
		Args:    args,
		Env:     ProfileEnv(m.Profile),
		Timeout: m.Toolchain.Timeout.Std(),
	}
}

// ProfileEnv derives the release-profile environment variables from the
// manifest profile. Cargo reads CARGO_PROFILE_RELEASE_* overrides from the
// environment, which keeps the project's own Cargo.toml untouched.
func ProfileEnv(p config.Profile) map[string]string {
	env := make(map[string]string, len(p.Env)+4)
	if p.OptLevel != "" {
		env["CARGO_PROFILE_RELEASE_OPT_LEVEL"] = p.OptLevel
	}
	if p.LTO != "" {
		env["CARGO_PROFILE_RELEASE_LTO"] = p.LTO
	}
	if p.CodegenUnits > 0 {
		env["CARGO_PROFILE_RELEASE_CODEGEN_UNITS"] = strconv.Itoa(p.CodegenUnits)
	}
	if p.Strip {
		env["CARGO_PROFILE_RELEASE_STRIP"] = "symbols"
	}
	for k, v := range p.Env {
		env[k] = v
	}
	return env
}
