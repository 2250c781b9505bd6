package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"cxref/internal/config"
	cxerrors "cxref/internal/errors"
	"cxref/internal/index"
)

const widgetSource = "namespace app {\nclass Widget {\n  void run();\n};\n}\nvoid go() { app::Widget w; }\n"

// execute runs the CLI with args after resetting every flag to its default.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootFlag, formatFlag, logLevelFlag = "", "human", "error"
	indexForce, indexKeepBuilds = false, 50
	initForce = false
	findTypes = ""
	treeDepth, treeTypes, collectDepth = -1, "", -1
	statusBuilds = 5

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// setupSCIPProject writes a one-file project whose symbols come from a SCIP
// index, initializes it and switches the config to the scip front-end.
func setupSCIPProject(t *testing.T) (root, src string) {
	t.Helper()
	root = t.TempDir()
	src = filepath.Join(root, "src", "w.cpp")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0755))
	require.NoError(t, os.WriteFile(src, []byte(widgetSource), 0644))

	def := int32(scippb.SymbolRole_Definition)
	idx := &scippb.Index{
		Metadata: &scippb.Metadata{ProjectRoot: "file:///elsewhere"},
		Documents: []*scippb.Document{{
			RelativePath: "src/w.cpp",
			Text:         widgetSource,
			Symbols: []*scippb.SymbolInformation{
				{Symbol: "c . . . app/", DisplayName: "app", Kind: scippb.SymbolInformation_Namespace},
				{Symbol: "c . . . app/Widget#", DisplayName: "Widget", Kind: scippb.SymbolInformation_Class},
				{Symbol: "c . . . app/Widget#run().", DisplayName: "run", Kind: scippb.SymbolInformation_Method},
				{Symbol: "c . . . go().", DisplayName: "go", Kind: scippb.SymbolInformation_Function},
			},
			Occurrences: []*scippb.Occurrence{
				{Symbol: "c . . . app/", Range: []int32{0, 10, 13}, SymbolRoles: def, EnclosingRange: []int32{0, 0, 4, 1}},
				{Symbol: "c . . . app/Widget#", Range: []int32{1, 6, 12}, SymbolRoles: def, EnclosingRange: []int32{1, 0, 3, 2}},
				{Symbol: "c . . . app/Widget#run().", Range: []int32{2, 7, 10}, SymbolRoles: def},
				{Symbol: "c . . . go().", Range: []int32{5, 5, 7}, SymbolRoles: def, EnclosingRange: []int32{5, 0, 30}},
				{Symbol: "c . . . app/Widget#", Range: []int32{5, 17, 23}},
			},
		}},
	}
	data, err := proto.Marshal(idx)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.scip"), data, 0644))

	_, err = execute(t, "--root", root, "init")
	require.NoError(t, err)

	cfg, err := config.LoadConfig(root)
	require.NoError(t, err)
	cfg.Index.Frontend = "scip"
	require.NoError(t, cfg.Save(root))
	return root, src
}

func TestCLI_IndexAndQuery(t *testing.T) {
	root, src := setupSCIPProject(t)

	out, err := execute(t, "--root", root, "--format", "json", "index")
	require.NoError(t, err)
	var built index.BuildResult
	require.NoError(t, json.Unmarshal([]byte(out), &built))
	assert.False(t, built.Skipped)
	require.NotNil(t, built.Meta)
	assert.Equal(t, 6, built.Meta.NodeCount)
	assert.Equal(t, 1, built.Meta.FileCount)
	assert.Equal(t, "scip", built.Meta.Frontend)

	out, err = execute(t, "--root", root, "locate", src+",23")
	require.NoError(t, err)
	assert.Equal(t, src+",23\tclass Widget {\n", out)

	out, err = execute(t, "--root", root, "find", "Widget", "--types", "ref")
	require.NoError(t, err)
	assert.Equal(t, src+",68\tvoid go() { app::Widget w; }\n", out)

	_, err = execute(t, "--root", root, "find", "Gadget")
	assert.ErrorIs(t, err, cxerrors.ErrNotFound)
	assert.Equal(t, exitNotFound, exitCode(err))

	out, err = execute(t, "--root", root, "names")
	require.NoError(t, err)
	assert.Equal(t, "Widget\napp\ngo\nrun\n", out)

	out, err = execute(t, "--root", root, "--format", "json", "tree", "--depth", "1")
	require.NoError(t, err)
	var tree TreeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &tree))
	assert.Len(t, tree.Results, 3)

	out, err = execute(t, "--root", root, "--format", "json", "collect", "0", "cl|ref")
	require.NoError(t, err)
	var collected ResultsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &collected))
	require.Len(t, collected.Results, 2)
	assert.Equal(t, "Class", collected.Results[0].Type)
	assert.Equal(t, "Reference", collected.Results[1].Type)

	out, err = execute(t, "--root", root, "--format", "json", "node", "1")
	require.NoError(t, err)
	var node NodeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &node))
	assert.Equal(t, "app", node.Node.Name)
	require.Len(t, node.Children, 1)
	assert.Equal(t, "Widget", node.Children[0].Name)

	out, err = execute(t, "--root", root, "--format", "json", "status")
	require.NoError(t, err)
	var status StatusResponse
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Freshness.Fresh)
	require.Len(t, status.Builds, 1)
	assert.Equal(t, built.Meta.BuildID, status.Builds[0].ID)

	out, err = execute(t, "--root", root, "index")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Index is up to date"), out)
}

func TestCLI_MissingStore(t *testing.T) {
	root := t.TempDir()
	_, err := execute(t, "--root", root, "find", "x")
	require.Error(t, err)
	assert.Equal(t, exitRebuild, exitCode(err))
}

func TestCLI_InvalidArguments(t *testing.T) {
	root := t.TempDir()

	_, err := execute(t, "--root", root, "find", "x", "--types", "bogus")
	assert.ErrorIs(t, err, cxerrors.ErrPreconditionViolation)

	_, err = execute(t, "--root", root, "node", "-3")
	assert.Error(t, err)

	_, err = execute(t, "--root", root, "context", "no-comma")
	assert.ErrorIs(t, err, cxerrors.ErrMalformedKey)
}

func TestCLI_ContextAndCanonicalize(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.c")
	require.NoError(t, os.WriteFile(src, []byte("int a;\nint b;\n"), 0644))

	out, err := execute(t, "context", src+",9")
	require.NoError(t, err)
	assert.Equal(t, src+",9\tint b;\n", out)

	out, err = execute(t, "canonicalize", dir+"/x/../a.c")
	require.NoError(t, err)
	assert.Equal(t, src+"\n", out)
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".cxref"), 0755))
	deep := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(deep, 0755))

	assert.Equal(t, root, findProjectRoot(deep))

	other := t.TempDir()
	assert.Equal(t, other, findProjectRoot(other))
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, errors.New("boom"))
	assert.Equal(t, "Error: boom\n", buf.String())
}
