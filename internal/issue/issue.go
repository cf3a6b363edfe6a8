// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

const (
	ConfigLoadFailedId Id = iota + 1
	ModsDirNotFoundId
	DescriptorInvalidId
	DiscoveryFailedId
	ResolutionFailedId
	ResolutionTimedOutId
	SearchLimitReachedId
	ActivationCycleId
	InvalidVersionId
	ResolutionCanceledId
)

type (
	Id int

	MarkdownMsg string

	HttpLink string

	// Renderer turns markdown into terminal output.
	Renderer interface {
		Render(in string, stylePath string) (string, error)
	}

	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		docLinks []HttpLink  // documentation about the issue type
		extLinks []HttpLink  // external links that might be useful for the user
	}

	rendererFunc func(in string, stylePath string) (string, error)
)

func (f rendererFunc) Render(in, stylePath string) (string, error) { return f(in, stylePath) }

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also:\n"
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "](" + string(link) + ")\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "](" + string(link) + ")\n"
		}
	}
	return renderer.Render(string(i.mdMsg)+extraMd, stylePath)
}

// RenderMarkdown renders arbitrary markdown with the package renderer.
func RenderMarkdown(md MarkdownMsg, stylePath string) (string, error) {
	return renderer.Render(string(md), stylePath)
}

var (
	renderer Renderer = rendererFunc(glamour.Render)

	semverLink = HttpLink("https://semver.org/#spec-item-11")

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or does not match the schema.

## Things you can try:
- Print the configuration modsolve would use:
~~~
$ modsolve config show
~~~
- Regenerate a default configuration file:
~~~
$ modsolve config init
~~~
- Override single values with environment variables, e.g. ` + "`MODSOLVE_ENVIRONMENT=server`",
	}

	modsDirNotFoundIssue = &Issue{
		id: ModsDirNotFoundId,
		mdMsg: `
# Mods directory not found!

The directory that should contain your modules does not exist, so no module was discovered.

## Things you can try:
- Pass the directory explicitly:
~~~
$ modsolve resolve --mods-dir ./mods
~~~
- Set ` + "`mods_dir`" + ` in your config file`,
	}

	descriptorInvalidIssue = &Issue{
		id: DescriptorInvalidId,
		mdMsg: `
# Invalid module descriptor!

A module descriptor (mod.cue, mod.json or mod.toml) failed validation. The module is skipped.

## Common issues:
- ids must match ` + "`^[a-z][a-z0-9_-]{1,63}$`" + `
- versions must be dot-separated numbers, optionally followed by -prerelease and +build
- a module must not depend on itself

## Things you can try:
~~~
$ modsolve validate ./mods/my-module
~~~`,
	}

	discoveryFailedIssue = &Issue{
		id: DiscoveryFailedId,
		mdMsg: `
# Discovery failed!

Every configured source failed and no module could be found.

## Things you can try:
- Check that the mods directory and include paths exist and are readable
- Run with verbose mode for more details:
~~~
$ modsolve --verbose discover
~~~`,
	}

	resolutionFailedIssue = &Issue{
		id: ResolutionFailedId,
		mdMsg: `
# Modules cannot be loaded together!

No selection of module versions satisfies every requirement, conflict and break declared by the discovered modules.

## Things you can try:
- Add or update the modules named in the conflicts
- Remove one side of each conflict from the mods directory
- See the full explanation:
~~~
$ modsolve resolve --explain
~~~`,
	}

	resolutionTimedOutIssue = &Issue{
		id: ResolutionTimedOutId,
		mdMsg: `
# Resolution timed out!

The search did not finish in time. This does not mean the modules are incompatible.

## Things you can try:
- Raise ` + "`resolver.timeout`" + ` in your config file
- Remove old versions of modules you do not need`,
	}

	searchLimitReachedIssue = &Issue{
		id: SearchLimitReachedId,
		mdMsg: `
# Search limit reached!

The resolver gave up after ` + "`resolver.max_steps`" + ` steps. This does not mean the modules are incompatible.

## Things you can try:
- Raise ` + "`resolver.max_steps`" + ` in your config file
- Remove old versions of modules you do not need`,
	}

	activationCycleIssue = &Issue{
		id: ActivationCycleId,
		mdMsg: `
# Activation cycle!

A consistent selection exists, but its modules require each other in a cycle, so no module can be activated first.

## Things you can try:
- Turn one of the requirements in the cycle into a recommendation`,
	}

	invalidVersionIssue = &Issue{
		id: InvalidVersionId,
		mdMsg: `
# Invalid version or range!

## Supported range syntax:
- ` + "`*`" + ` any version
- ` + "`1.2.0`" + ` or ` + "`=1.2.0`" + ` exactly 1.2.0
- ` + "`>1.0`, `>=1.0`, `<2.0`, `<=2.0`" + ` comparisons
- ` + "`^1.2`" + ` same major, at least 1.2
- ` + "`~1.2`" + ` same major and minor, at least 1.2
- ` + "`1.x`, `1.2.*`" + ` wildcards
- space-separated predicates must all hold`,
		extLinks: []HttpLink{semverLink},
	}

	resolutionCanceledIssue = &Issue{
		id: ResolutionCanceledId,
		mdMsg: `
# Resolution canceled!

The search was interrupted before it finished. Nothing is known about whether the modules can be loaded together.

## Things you can try:
- Run the command again and let it finish`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		modsDirNotFoundIssue.Id():    modsDirNotFoundIssue,
		descriptorInvalidIssue.Id():  descriptorInvalidIssue,
		discoveryFailedIssue.Id():    discoveryFailedIssue,
		resolutionFailedIssue.Id():   resolutionFailedIssue,
		resolutionTimedOutIssue.Id(): resolutionTimedOutIssue,
		searchLimitReachedIssue.Id(): searchLimitReachedIssue,
		activationCycleIssue.Id():    activationCycleIssue,
		invalidVersionIssue.Id():     invalidVersionIssue,
		resolutionCanceledIssue.Id(): resolutionCanceledIssue,
	}
)

// Values returns every issue ordered by id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
