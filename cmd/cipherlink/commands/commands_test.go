package commands

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"cipherlink/internal/relayserver"
)

const testPassphrase = "Correct-Horse-9"

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func startRelay(t *testing.T) string {
	t.Helper()
	backend, err := relayserver.OpenLevelDB("")
	require.NoError(t, err)
	srv := relayserver.New(backend, nil)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
		_ = backend.Close()
	})
	return ts.URL
}

func TestInitRequiresPassphrase(t *testing.T) {
	_, err := run(t, "", "init", "--home", t.TempDir())
	require.ErrorContains(t, err, "passphrase required")
}

func TestInitAndFingerprint(t *testing.T) {
	home := t.TempDir()
	out, err := run(t, "", "init", "--home", home, "-p", testPassphrase)
	require.NoError(t, err)
	require.Contains(t, out, "Fingerprint: ")
	fp := strings.TrimSpace(out[strings.Index(out, "Fingerprint: ")+len("Fingerprint: "):])

	out, err = run(t, "", "fingerprint", "--home", home, "-p", testPassphrase, "--keys")
	require.NoError(t, err)
	require.Contains(t, out, fp)
	require.Contains(t, out, "Identity key: ")

	_, err = run(t, "", "fingerprint", "--home", home, "-p", "Wrong-Horse-99")
	require.Error(t, err)
}

func TestSendRequiresRelay(t *testing.T) {
	_, err := run(t, "", "send", "bob", "hi", "--home", t.TempDir(), "-p", testPassphrase)
	require.ErrorContains(t, err, "no relay configured")
}

func TestHandshakeRoundTrip(t *testing.T) {
	relay := startRelay(t)
	aliceHome, bobHome := t.TempDir(), t.TempDir()
	alice := []string{"--home", aliceHome, "-p", testPassphrase, "--relay", relay, "--user", "alice"}
	bob := []string{"--home", bobHome, "-p", testPassphrase, "--relay", relay, "--user", "bob"}

	for _, flags := range [][]string{alice, bob} {
		_, err := run(t, "", append([]string{"init"}, flags...)...)
		require.NoError(t, err)
		out, err := run(t, "", append([]string{"register"}, flags...)...)
		require.NoError(t, err)
		require.Contains(t, out, "Registered key bundle")
	}

	out, err := run(t, "", append([]string{"start-session", "bob"}, alice...)...)
	require.NoError(t, err)
	require.Contains(t, out, "Session created with bob. Tag=")

	out, err = run(t, "", append([]string{"send", "bob", "hello bob"}, alice...)...)
	require.NoError(t, err)
	require.Contains(t, out, "sent")

	out, err = run(t, "", append([]string{"recv"}, bob...)...)
	require.NoError(t, err)
	require.Contains(t, out, "[alice] hello bob")

	// Bob's reply reuses the session stored on disk by the previous run.
	_, err = run(t, "", append([]string{"send", "alice", "hello alice"}, bob...)...)
	require.NoError(t, err)
	out, err = run(t, "", append([]string{"recv"}, alice...)...)
	require.NoError(t, err)
	require.Contains(t, out, "[bob] hello alice")

	out, err = run(t, "", append([]string{"sessions"}, alice...)...)
	require.NoError(t, err)
	require.Contains(t, out, "bob\thandshake\tinitiator\tTag=")
	out, err = run(t, "", append([]string{"sessions"}, bob...)...)
	require.NoError(t, err)
	require.Contains(t, out, "alice\thandshake\tresponder\tTag=")
}

func TestReinitKeepsMessagesFlowing(t *testing.T) {
	relay := startRelay(t)
	alice := []string{"--home", t.TempDir(), "-p", testPassphrase, "--relay", relay, "--user", "alice"}
	bob := []string{"--home", t.TempDir(), "-p", testPassphrase, "--relay", relay, "--user", "bob"}
	for _, flags := range [][]string{alice, bob} {
		_, err := run(t, "", append([]string{"init"}, flags...)...)
		require.NoError(t, err)
		_, err = run(t, "", append([]string{"register"}, flags...)...)
		require.NoError(t, err)
	}
	_, err := run(t, "", append([]string{"send", "bob", "first life"}, alice...)...)
	require.NoError(t, err)
	out, err := run(t, "", append([]string{"recv"}, bob...)...)
	require.NoError(t, err)
	require.Contains(t, out, "[alice] first life")

	// Alice replaces her identity in the same home.
	_, err = run(t, "", append([]string{"init"}, alice...)...)
	require.NoError(t, err)
	out, err = run(t, "", append([]string{"fingerprint", "--keys"}, alice...)...)
	require.NoError(t, err)
	require.Contains(t, out, "stale, run register")
	out, err = run(t, "", append([]string{"sessions"}, alice...)...)
	require.NoError(t, err)
	require.Contains(t, out, "No sessions.")

	out, err = run(t, "", append([]string{"register"}, alice...)...)
	require.NoError(t, err)
	require.Contains(t, out, "Identity changed since the last publish")
	out, err = run(t, "", append([]string{"fingerprint", "--keys"}, alice...)...)
	require.NoError(t, err)
	require.Contains(t, out, "(current)")

	_, err = run(t, "", append([]string{"send", "bob", "second life"}, alice...)...)
	require.NoError(t, err)
	out, err = run(t, "", append([]string{"recv"}, bob...)...)
	require.NoError(t, err)
	require.Contains(t, out, "[alice] second life")
	require.NotContains(t, out, "undecryptable")
}

func TestPoolRoundTrip(t *testing.T) {
	relay := startRelay(t)
	alice := []string{"--home", t.TempDir(), "-p", testPassphrase, "--relay", relay,
		"--user", "alice", "--strategy", "pool", "--pool-size", "5"}
	bob := []string{"--home", t.TempDir(), "-p", testPassphrase, "--relay", relay,
		"--user", "bob", "--strategy", "pool"}

	_, err := run(t, "", append([]string{"init"}, alice...)...)
	require.NoError(t, err)
	out, err := run(t, "", append([]string{"register"}, alice...)...)
	require.NoError(t, err)
	require.Contains(t, out, "Published key pool of 5 keys")
	_, err = run(t, "", append([]string{"init"}, bob...)...)
	require.NoError(t, err)

	out, err = run(t, "", append([]string{"send", "bob", "one"}, alice...)...)
	require.NoError(t, err)
	require.Contains(t, out, "4 pool keys left")
	out, err = run(t, "", append([]string{"send", "bob", "two"}, alice...)...)
	require.NoError(t, err)
	require.Contains(t, out, "3 pool keys left")

	out, err = run(t, "", append([]string{"recv"}, bob...)...)
	require.NoError(t, err)
	require.Contains(t, out, "[alice] one")
	require.Contains(t, out, "[alice] two")
}

func TestChatSendsStdinLines(t *testing.T) {
	relay := startRelay(t)
	bob := []string{"--home", t.TempDir(), "-p", testPassphrase, "--relay", relay, "--user", "bob"}
	_, err := run(t, "", append([]string{"init"}, bob...)...)
	require.NoError(t, err)
	_, err = run(t, "", append([]string{"register"}, bob...)...)
	require.NoError(t, err)

	out, err := run(t, "first\n\nsecond\n", "chat", "bob", "--ephemeral", "--relay", relay, "--user", "carol")
	require.NoError(t, err)
	require.Contains(t, out, "Ephemeral identity ")

	out, err = run(t, "", append([]string{"recv"}, bob...)...)
	require.NoError(t, err)
	require.Contains(t, out, "[carol] first")
	require.Contains(t, out, "[carol] second")
}
