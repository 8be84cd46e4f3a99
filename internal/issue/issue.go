// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

// Catalog entries.
const (
	ManifestNotFoundID ID = iota + 1
	ManifestInvalidID
	ConfigLoadFailedID
	ScriptFailedID
	WrapperLaunchFailedID
	ChannelIncompleteID
	InvalidExitCodeID
)

type (
	// ID identifies a catalog entry.
	ID int

	// MarkdownMsg is Markdown text rendered for the user.
	MarkdownMsg string

	// HTTPLink is a reference shown under "See also".
	HTTPLink string

	// Issue is a catalog entry explaining a failure and how to recover.
	Issue struct {
		id    ID
		mdMsg MarkdownMsg
		links []HTTPLink
	}
)

var (
	render = glamour.Render

	manifestNotFoundIssue = &Issue{
		id: ManifestNotFoundID,
		mdMsg: `
# Manifest not found!

scriptwrap needs a job manifest describing the template slots to run.

## Things you can try:
- Pass the manifest path explicitly:
~~~
$ scriptwrap exec ./job.toml
~~~

- Create a minimal manifest:
~~~toml
[template]
main = "echo hello"
~~~`,
		links: []HTTPLink{"https://toml.io/en/v1.0.0"},
	}

	manifestInvalidIssue = &Issue{
		id: ManifestInvalidID,
		mdMsg: `
# Invalid manifest!

The manifest could not be decoded or one of its values is not supported.

## Common causes:
- A key outside ` + "`name`, `dir`, `template`, `outputs`, `output_arrays`, `env`, `bindings`, `data`, `data_files`" + `
- A binding holding a table, or an array whose rows differ in length
- A shell fragment with a syntax error

## Things you can try:
- Keep arrays rectangular: ` + "`grid = [[1, 2], [3, 4]]`" + `
- Check the fragment on its own with ` + "`bash -n`",
		links: []HTTPLink{"https://toml.io/en/v1.0.0"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedID,
		mdMsg: `
# Failed to load configuration!

The configuration file is not valid CUE or does not match the schema.

## Things you can try:
- Print the effective configuration:
~~~
$ scriptwrap config show
~~~

- Recreate the default file:
~~~
$ scriptwrap config init --force
~~~`,
		links: []HTTPLink{"https://cuelang.org/docs/"},
	}

	scriptFailedIssue = &Issue{
		id: ScriptFailedID,
		mdMsg: `
# Script failed!

A template slot finished with a non-zero status. Cleanup still ran and its
records were emitted.

## Things you can try:
- Re-run with ` + "`--verbose`" + ` to see which slot failed
- Use ` + "`raise_exit n`" + ` or ` + "`os_exit n`" + ` to end a run on purpose`,
		links: []HTTPLink{"https://pkg.go.dev/mvdan.cc/sh/v3/interp"},
	}

	wrapperLaunchFailedIssue = &Issue{
		id: WrapperLaunchFailedID,
		mdMsg: `
# Failed to launch the wrapper!

The host could not start the ` + "`scriptwrap exec`" + ` subprocess.

## Things you can try:
- Check that the scriptwrap binary is on your PATH
- Check that the work directory is writable
- Keep the work directory for inspection:
~~~
$ scriptwrap run --keep-workdir ./job.toml
~~~`,
	}

	channelIncompleteIssue = &Issue{
		id: ChannelIncompleteID,
		mdMsg: `
# Incomplete array on the data channel!

An array header announced more elements than were received. The wrapper was
probably killed while emitting records.

## Things you can try:
- Check the wrapper's exit code and stderr
- Avoid writing lines that start with the channel sentinels from scripts`,
	}

	invalidExitCodeIssue = &Issue{
		id: InvalidExitCodeID,
		mdMsg: `
# Invalid exit code!

Exit codes must be between 0 and 255.

## Things you can try:
- Use ` + "`os_exit 1`" + ` instead of negative or large values`,
	}

	issues = map[ID]*Issue{
		manifestNotFoundIssue.ID():    manifestNotFoundIssue,
		manifestInvalidIssue.ID():     manifestInvalidIssue,
		configLoadFailedIssue.ID():    configLoadFailedIssue,
		scriptFailedIssue.ID():        scriptFailedIssue,
		wrapperLaunchFailedIssue.ID(): wrapperLaunchFailedIssue,
		channelIncompleteIssue.ID():   channelIncompleteIssue,
		invalidExitCodeIssue.ID():     invalidExitCodeIssue,
	}
)

// String returns the decimal form used on the command line.
func (id ID) String() string { return strconv.Itoa(int(id)) }

// ID returns the catalog ID.
func (i *Issue) ID() ID { return i.id }

// MarkdownMsg returns the Markdown body.
func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

// Title returns the text of the first Markdown heading.
func (i *Issue) Title() string {
	for line := range strings.Lines(string(i.mdMsg)) {
		if title, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			return strings.TrimSuffix(title, "!")
		}
	}
	return ""
}

// Links returns a copy of the reference links.
func (i *Issue) Links() []HTTPLink { return slices.Clone(i.links) }

// Render renders the issue for a terminal using the glamour style at stylePath
// (a style name such as "dark" or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	var b strings.Builder
	b.WriteString(string(i.mdMsg))
	if len(i.links) > 0 {
		b.WriteString("\n\n## See also:\n")
		for _, link := range i.links {
			b.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(b.String(), stylePath)
}

// Values returns every catalog entry ordered by ID.
func Values() []*Issue {
	out := maps.Values(issues)
	slices.SortFunc(out, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return out
}

// Get returns the catalog entry for id, or nil.
func Get(id ID) *Issue {
	return issues[id]
}
