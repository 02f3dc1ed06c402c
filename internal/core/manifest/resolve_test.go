package manifest

import (
	"errors"
	"testing"

	"github.com/artpar/autorelease/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var meta = domain.Metadata{Description: "a crate", License: "MIT"}

func pkg(name string, v domain.DeclaredVersion) domain.Package {
	return domain.Package{Name: name, Path: name, Version: v, Metadata: meta}
}

func TestEffectiveVersion_ExplicitWinsOverRoot(t *testing.T) {
	v, err := EffectiveVersion(pkg("a", domain.ExplicitVersion("0.2.0")), "9.9.9")
	require.NoError(t, err)
	assert.Equal(t, "0.2.0", v)
}

func TestEffectiveVersion_Inherited(t *testing.T) {
	v, err := EffectiveVersion(pkg("a", domain.InheritedVersion()), "1.4.0")
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", v)
}

func TestEffectiveVersion_InheritedWithoutRoot(t *testing.T) {
	_, err := EffectiveVersion(pkg("a", domain.InheritedVersion()), "")
	require.Error(t, err)

	var me *ManifestError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "a", me.Package)
	assert.ErrorIs(t, err, ErrInheritedWithoutRoot)
}

func TestEffectiveVersion_InvalidSemver(t *testing.T) {
	for _, v := range []string{"1.2", "v1.2.3", "banana", "01.0.0"} {
		_, err := EffectiveVersion(pkg("a", domain.ExplicitVersion(v)), "")
		assert.ErrorIs(t, err, ErrInvalidVersion, v)
	}
}

func TestEffectiveVersion_Missing(t *testing.T) {
	_, err := EffectiveVersion(pkg("a", domain.DeclaredVersion{}), "1.0.0")
	assert.ErrorIs(t, err, ErrMissingVersion)
}

func TestIsPublishable(t *testing.T) {
	assert.True(t, IsPublishable(pkg("a", domain.ExplicitVersion("1.0.0"))))

	noLicense := pkg("a", domain.ExplicitVersion("1.0.0"))
	noLicense.Metadata.License = ""
	assert.False(t, IsPublishable(noLicense))

	licenseFile := noLicense
	licenseFile.Metadata.LicenseFile = "LICENSE"
	assert.True(t, IsPublishable(licenseFile))

	noDescription := pkg("a", domain.ExplicitVersion("1.0.0"))
	noDescription.Metadata.Description = ""
	assert.False(t, IsPublishable(noDescription))

	optedOut := pkg("a", domain.ExplicitVersion("1.0.0"))
	optedOut.PublishDisabled = true
	assert.False(t, IsPublishable(optedOut))
}

func TestResolve_SortsAndResolves(t *testing.T) {
	ws := domain.Workspace{
		RootVersion: "0.3.0",
		Members: []domain.Package{
			pkg("zeta", domain.InheritedVersion()),
			pkg("alpha", domain.ExplicitVersion("1.0.0")),
			{Name: "internal", Path: "internal", Version: domain.InheritedVersion()},
		},
	}

	got, err := Resolve(ws, Options{})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "alpha", got[0].Name)
	assert.Equal(t, "1.0.0", got[0].EffectiveVersion)
	assert.True(t, got[0].Publishable)

	assert.Equal(t, "internal", got[1].Name)
	assert.Equal(t, "0.3.0", got[1].EffectiveVersion)
	assert.False(t, got[1].Publishable)
	assert.Equal(t, []string{"description", "license"}, got[1].MissingMetadata)

	assert.Equal(t, "zeta", got[2].Name)
	assert.Equal(t, "0.3.0", got[2].EffectiveVersion)
}

func TestResolve_InvalidRootVersion(t *testing.T) {
	_, err := Resolve(domain.Workspace{RootVersion: "1.0"}, Options{})

	var me *ManifestError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, RootPackageName, me.Package)
	assert.ErrorIs(t, err, ErrInvalidVersion)
}

func TestResolve_DuplicateName(t *testing.T) {
	ws := domain.Workspace{Members: []domain.Package{
		pkg("a", domain.ExplicitVersion("1.0.0")),
		pkg("a", domain.ExplicitVersion("1.0.0")),
	}}
	_, err := Resolve(ws, Options{})
	assert.ErrorIs(t, err, ErrDuplicatePackage)
}

func TestResolve_EmptyName(t *testing.T) {
	ws := domain.Workspace{Members: []domain.Package{{Path: "x", Version: domain.ExplicitVersion("1.0.0")}}}
	_, err := Resolve(ws, Options{})
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestResolve_StrictMetadata(t *testing.T) {
	bare := domain.Package{Name: "mypkg", Path: ".", Version: domain.ExplicitVersion("0.1.0"),
		Metadata: domain.Metadata{Description: "x"}}

	_, err := Resolve(domain.Workspace{Members: []domain.Package{bare}}, Options{})
	require.NoError(t, err)

	_, err = Resolve(domain.Workspace{Members: []domain.Package{bare}}, Options{StrictMetadata: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingMetadata)
	assert.Equal(t, "package `mypkg`: license: is missing a license field", err.Error())

	bare.PublishDisabled = true
	_, err = Resolve(domain.Workspace{Members: []domain.Package{bare}}, Options{StrictMetadata: true})
	assert.NoError(t, err)
}

func TestPublishable_PreservesOrder(t *testing.T) {
	in := []domain.ResolvedPackage{
		{Package: domain.Package{Name: "a"}, Publishable: true},
		{Package: domain.Package{Name: "b"}},
		{Package: domain.Package{Name: "c"}, Publishable: true},
	}
	out := Publishable(in)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Name)
	assert.Equal(t, "c", out[1].Name)
	assert.Contains(t, Index(in), "b")
}
