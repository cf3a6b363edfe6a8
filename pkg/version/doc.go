// SPDX-License-Identifier: MPL-2.0

// Package version implements the version model used by module descriptors.
//
// A [Version] is a dot-separated list of non-negative integers with an
// optional pre-release and build suffix ("1.20.4", "2.0.0-beta.3+git.abc").
// Unlike strict SemVer, any number of numeric components is accepted and
// missing trailing components compare as zero, so "1.2" and "1.2.0" are equal.
//
// A [Predicate] is a side-effect-free test over a Version. Predicates are
// parsed from range strings by [ParsePredicate]:
//
//	*            any version
//	1.2.3        exactly 1.2.3 (also "=1.2.3")
//	>=1.2 <2     AND of comparisons (space separated)
//	^1.2.3       same major, at least 1.2.3
//	~1.2.3       same major.minor, at least 1.2.3
//	1.2.x        wildcard segment match (also "1.2.*")
//
// Predicates only compose with AND. Alternatives (OR) are expressed by the
// caller as several ranges, see [Ranges].
package version
