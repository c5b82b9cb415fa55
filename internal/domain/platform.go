package domain

import "strings"

// Platform identifies a supported blogging platform
type Platform string

const (
	PlatformDevTo    Platform = "devto"
	PlatformMedium   Platform = "medium"
	PlatformHashnode Platform = "hashnode"
	PlatformSubstack Platform = "substack"
	PlatformUnknown  Platform = "unknown"
)

// PlatformInfo describes how a platform is presented to clients
type PlatformInfo struct {
	DisplayName string `json:"display_name"`
	IconKey     string `json:"icon_key"`
}

var platformInfos = map[Platform]PlatformInfo{
	PlatformDevTo:    {DisplayName: "DEV Community", IconKey: "devto"},
	PlatformMedium:   {DisplayName: "Medium", IconKey: "medium"},
	PlatformHashnode: {DisplayName: "Hashnode", IconKey: "hashnode"},
	PlatformSubstack: {DisplayName: "Substack", IconKey: "substack"},
	PlatformUnknown:  {DisplayName: "Blog", IconKey: "blog"},
}

// SupportedPlatforms lists every platform with a dedicated adapter
func SupportedPlatforms() []Platform {
	return []Platform{PlatformDevTo, PlatformMedium, PlatformHashnode, PlatformSubstack}
}

// ParsePlatform maps a platform name to a Platform, defaulting to PlatformUnknown
func ParsePlatform(name string) Platform {
	p := Platform(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := platformInfos[p]; ok {
		return p
	}
	return PlatformUnknown
}

// Info returns the presentation details of the platform
func (p Platform) Info() PlatformInfo {
	if info, ok := platformInfos[p]; ok {
		return info
	}
	return platformInfos[PlatformUnknown]
}

// Valid reports whether the platform has a dedicated adapter
func (p Platform) Valid() bool {
	return p != PlatformUnknown && p.Info() != platformInfos[PlatformUnknown]
}
