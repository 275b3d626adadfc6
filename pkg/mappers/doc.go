// Package mappers translates stored property values between a host and their
// portable form.
//
// A Registry maps editor aliases (for example "Umbraco.NestedContent") to a
// Mapper. Values of editors without a registered mapper pass through
// unchanged. NestedContent recurses into JSON arrays of nested items and maps
// each item property through the same registry.
package mappers
