package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Stage markers carried through the environment across re-execs.
const (
	stageEnv  = "_STOKER_STAGE"
	configEnv = "_STOKER_CONFIG"
	seqEnv    = "_STOKER_SEQ"

	stageIntermediate = "intermediate"
	stageFinal        = "final"
)

// stageEnviron builds the child environment for the given stage: the
// current environment minus any previous stage markers, plus fresh ones.
func stageEnviron(stage string, cfg Config, seq int) ([]string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding stage config: %w", err)
	}
	env := scrubEnviron(os.Environ())
	env = append(env,
		stageEnv+"="+stage,
		configEnv+"="+string(data),
		seqEnv+"="+strconv.Itoa(seq),
	)
	return env, nil
}

// scrubEnviron drops stage markers from an environment slice.
func scrubEnviron(env []string) []string {
	out := env[:0]
	for _, kv := range env {
		if strings.HasPrefix(kv, stageEnv+"=") ||
			strings.HasPrefix(kv, configEnv+"=") ||
			strings.HasPrefix(kv, seqEnv+"=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// stageFromEnviron reads the stage marker, config, and sequence index
// from the current process environment. Returns stage "" when this
// process is the launcher.
func stageFromEnviron() (stage string, cfg Config, seq int, err error) {
	stage = os.Getenv(stageEnv)
	if stage == "" {
		return "", Config{}, 0, nil
	}
	raw := os.Getenv(configEnv)
	if raw == "" {
		return "", Config{}, 0, fmt.Errorf("stage %q without %s", stage, configEnv)
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return "", Config{}, 0, fmt.Errorf("decoding stage config: %w", err)
	}
	if s := os.Getenv(seqEnv); s != "" {
		seq, err = strconv.Atoi(s)
		if err != nil {
			return "", Config{}, 0, fmt.Errorf("decoding sequence index: %w", err)
		}
	}
	return stage, cfg, seq, nil
}

// clearStageEnv removes the stage markers from the current process so
// the daemonized caller's own subprocesses do not inherit them.
func clearStageEnv() {
	os.Unsetenv(stageEnv)  //nolint:errcheck // best-effort scrub
	os.Unsetenv(configEnv) //nolint:errcheck // best-effort scrub
	os.Unsetenv(seqEnv)    //nolint:errcheck // best-effort scrub
}
