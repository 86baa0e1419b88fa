// Copyright 2025 cdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package compdb

import (
	"bytes"
	"errors"
	"io"
	"os/exec"
	"time"

	"cdriver/pkg/log"
	"cdriver/pkg/osutil"
)

const preprocessTimeout = 5 * time.Minute

// Preprocess runs "clang -E -P flags file" and returns the preprocessed
// source. -P suppresses line markers; the output is parsed again afterwards
// and markers would show up as parse noise. On failure the error carries the
// compiler's stderr.
func Preprocess(file string, flags []string) ([]byte, error) {
	args := append([]string{"-E", "-P"}, flags...)
	args = append(args, file)
	log.Logf(1, "preprocessing %v with flags %q", file, flags)
	cmd := exec.Command("clang", args...)
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	cmd.Stdout = stdout
	// Compiler diagnostics stream to the log at high verbosity and are kept
	// for the error message either way.
	cmd.Stderr = io.MultiWriter(stderr, log.VerboseWriter(2))
	if _, err := osutil.Run(preprocessTimeout, cmd); err != nil {
		var verbose *osutil.VerboseError
		if errors.As(err, &verbose) {
			verbose.Output = stderr.Bytes()
		}
		return nil, osutil.PrependContext("failed to preprocess "+file, err)
	}
	return stdout.Bytes(), nil
}
