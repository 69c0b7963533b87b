// Copyright 2026 The Vessel Authors
// SPDX-License-Identifier: Apache-2.0

// vessel-build computes build-step fingerprints and materializes
// changed steps into a target image root.
//
// Usage:
//
//	vessel-build version [flags]   compute and print step fingerprints
//	vessel-build build [flags]     materialize changed steps
//	vessel-build validate [flags]  check a build plan
//
// Fingerprints are compared against the index file; a step whose
// fingerprint matches its recorded one is skipped during build.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/vessel-build/vessel/lib/buildstep"
	"github.com/vessel-build/vessel/lib/clock"
	"github.com/vessel-build/vessel/lib/fingerprint"
	"github.com/vessel-build/vessel/lib/plandef"
	"github.com/vessel-build/vessel/lib/stepdigest"
	"github.com/vessel-build/vessel/lib/userdb"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if os.Getenv("VESSEL_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "version":
		err = versionCmd(args, logger)
	case "build":
		err = buildCmd(args, logger)
	case "validate":
		err = validateCmd(args)
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`vessel-build - Version and materialize container build steps

USAGE
    vessel-build <command> [flags]

COMMANDS
    version   Compute step fingerprints and report which steps changed
    build     Materialize changed steps into the target root
    validate  Parse and validate a build plan

EXAMPLES
    # Check which steps would rebuild
    vessel-build version --plan vessel.yaml

    # Record current fingerprints without building
    vessel-build version --plan vessel.yaml --record

    # Build into a target root (needs CAP_SYS_CHROOT)
    vessel-build build --plan vessel.yaml --root /vessel/root

ENVIRONMENT
    VESSEL_DEBUG   Enable debug logging when set
`)
}

// planFlags are the flags shared by version and build.
type planFlags struct {
	planPath  string
	workspace string
	indexPath string
}

func addPlanFlags(flagSet *pflag.FlagSet, flags *planFlags) {
	flagSet.StringVar(&flags.planPath, "plan", "vessel.yaml", "build plan file (.yaml, .json, or .jsonc)")
	flagSet.StringVar(&flags.workspace, "workspace", buildstep.DefaultWorkspaceRoot, "workspace root holding the source tree")
	flagSet.StringVar(&flags.indexPath, "index", "", "fingerprint index file (default: <plan dir>/.vessel/index.cbor)")
}

func (f *planFlags) resolvedIndexPath() string {
	if f.indexPath != "" {
		return f.indexPath
	}
	return filepath.Join(filepath.Dir(f.planPath), ".vessel", "index.cbor")
}

// loadSteps reads, validates, and converts the plan, and opens the
// fingerprint index.
func loadSteps(flags *planFlags) ([]plandef.NamedStep, *fingerprint.Index, error) {
	plan, err := plandef.ReadFile(flags.planPath)
	if err != nil {
		return nil, nil, err
	}
	steps, err := plandef.Steps(plan)
	if err != nil {
		return nil, nil, err
	}
	index, err := fingerprint.Load(flags.resolvedIndexPath())
	if err != nil {
		return nil, nil, err
	}
	return steps, index, nil
}

func hashStep(step buildstep.Step, cfg *buildstep.Config) (stepdigest.Fingerprint, error) {
	d := stepdigest.New()
	if err := step.Hash(cfg, d); err != nil {
		return stepdigest.Fingerprint{}, err
	}
	return d.Sum(), nil
}

func versionCmd(args []string, logger *slog.Logger) error {
	var flags planFlags
	var record bool

	flagSet := pflag.NewFlagSet("version", pflag.ContinueOnError)
	addPlanFlags(flagSet, &flags)
	flagSet.BoolVar(&record, "record", false, "record the computed fingerprints without building")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	steps, index, err := loadSteps(&flags)
	if err != nil {
		return err
	}
	cfg := &buildstep.Config{WorkspaceRoot: flags.workspace}

	for _, named := range steps {
		fp, err := hashStep(named.Step, cfg)
		if errors.Is(err, buildstep.ErrNoPreviousVersion) {
			fmt.Printf("%-24s %-11s %s\n", named.Name, "missing", "source path does not exist yet")
			continue
		}
		if err != nil {
			return fmt.Errorf("step %s: %w", named.Name, err)
		}

		state := "unchanged"
		if index.Changed(named.Name, fp) {
			state = "changed"
		}
		fmt.Printf("%-24s %-11s %s\n", named.Name, state, stepdigest.Format(fp))

		if record {
			index.Record(named.Name, fp, clock.Real().Now())
		}
	}

	if record {
		logger.Debug("recording fingerprints", "index", flags.resolvedIndexPath())
		if err := index.Save(); err != nil {
			return err
		}
	}
	return nil
}

func buildCmd(args []string, logger *slog.Logger) error {
	var flags planFlags
	var targetRoot string
	var force bool

	flagSet := pflag.NewFlagSet("build", pflag.ContinueOnError)
	addPlanFlags(flagSet, &flags)
	flagSet.StringVar(&targetRoot, "root", buildstep.DefaultTargetRoot, "target root to materialize into")
	flagSet.BoolVar(&force, "force", false, "rebuild every step regardless of recorded fingerprints")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	steps, index, err := loadSteps(&flags)
	if err != nil {
		return err
	}
	cfg := &buildstep.Config{WorkspaceRoot: flags.workspace, TargetRoot: targetRoot}
	guard := &buildstep.Guard{Config: *cfg}
	now := clock.Real()

	for _, named := range steps {
		logOwnerDiagnostics(logger, named)

		fp, err := hashStep(named.Step, cfg)
		if err != nil {
			// ErrNoPreviousVersion included: a build needs its
			// sources present.
			return fmt.Errorf("step %s: %w", named.Name, err)
		}

		shouldBuild := force || index.Changed(named.Name, fp)
		if shouldBuild {
			logger.Info("building step", "step", named.Name, "kind", named.Step.Name())
		} else {
			logger.Debug("step unchanged", "step", named.Name)
		}
		if err := named.Step.Build(guard, shouldBuild); err != nil {
			return fmt.Errorf("step %s: %w", named.Name, err)
		}
		index.Record(named.Name, fp, now.Now())
	}

	if err := index.Save(); err != nil {
		return err
	}
	logger.Info("build complete", "steps", len(steps), "root", targetRoot)
	return nil
}

// logOwnerDiagnostics resolves configured owner overrides against the
// host user database. A missing entry is not an error (the id may only
// exist inside the image) but is worth surfacing.
func logOwnerDiagnostics(logger *slog.Logger, named plandef.NamedStep) {
	cp, ok := named.Step.(*buildstep.Copy)
	if !ok {
		return
	}
	if cp.OwnerUID != nil {
		if name, ok := userdb.LookupUser(*cp.OwnerUID); ok {
			logger.Debug("owner override", "step", named.Name, "uid", *cp.OwnerUID, "user", name)
		} else {
			logger.Warn("owner uid has no passwd entry on this host", "step", named.Name, "uid", *cp.OwnerUID)
		}
	}
	if cp.OwnerGID != nil {
		if name, ok := userdb.LookupGroup(*cp.OwnerGID); ok {
			logger.Debug("group override", "step", named.Name, "gid", *cp.OwnerGID, "group", name)
		} else {
			logger.Warn("owner gid has no group entry on this host", "step", named.Name, "gid", *cp.OwnerGID)
		}
	}
}

func validateCmd(args []string) error {
	var planPath string

	flagSet := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	flagSet.StringVar(&planPath, "plan", "vessel.yaml", "build plan file (.yaml, .json, or .jsonc)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	plan, err := plandef.ReadFile(planPath)
	if err != nil {
		return err
	}
	issues := plandef.Validate(plan)
	for _, issue := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s\n", planPath, issue)
	}
	if len(issues) > 0 {
		return fmt.Errorf("%d validation issue(s)", len(issues))
	}
	fmt.Printf("%s: %d step(s), valid\n", planPath, len(plan.Steps))
	return nil
}
