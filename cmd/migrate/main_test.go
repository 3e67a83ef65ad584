package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
)

type fakeMigrator struct {
	upErr, downErr error
	version        uint
	dirty          bool
	versionErr     error
	forced         int
}

func (f *fakeMigrator) Up() error   { return f.upErr }
func (f *fakeMigrator) Down() error { return f.downErr }

func (f *fakeMigrator) Version() (uint, bool, error) {
	return f.version, f.dirty, f.versionErr
}

func (f *fakeMigrator) Force(v int) error {
	f.forced = v
	return nil
}

func TestRunCommand(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		m       *fakeMigrator
		command string
		args    []string
		want    string
		wantErr bool
	}{
		{name: "up", m: &fakeMigrator{}, command: "up", want: "migrations completed"},
		{name: "up no change", m: &fakeMigrator{upErr: migrate.ErrNoChange}, command: "up", want: "up to date"},
		{name: "up failure", m: &fakeMigrator{upErr: boom}, command: "up", wantErr: true},
		{name: "down", m: &fakeMigrator{}, command: "down", want: "rollback completed"},
		{name: "down no change", m: &fakeMigrator{downErr: migrate.ErrNoChange}, command: "down", want: "nothing to roll back"},
		{name: "version", m: &fakeMigrator{version: 1, dirty: true}, command: "version", want: "current version: 1 (dirty: true)"},
		{name: "version none", m: &fakeMigrator{versionErr: migrate.ErrNilVersion}, command: "version", want: "no migration applied"},
		{name: "force", m: &fakeMigrator{}, command: "force", args: []string{"1"}, want: "forced version to 1"},
		{name: "force without version", m: &fakeMigrator{}, command: "force", wantErr: true},
		{name: "force bad version", m: &fakeMigrator{}, command: "force", args: []string{"x"}, wantErr: true},
		{name: "unknown", m: &fakeMigrator{}, command: "sideways", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runCommand(tt.m, tt.command, tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("runCommand() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("runCommand() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestRunCommandForceSetsVersion(t *testing.T) {
	m := &fakeMigrator{}
	if _, err := runCommand(m, "force", []string{"3"}); err != nil {
		t.Fatalf("runCommand() failed: %v", err)
	}
	if m.forced != 3 {
		t.Errorf("forced = %d, want 3", m.forced)
	}
}
