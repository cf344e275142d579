package version

const UnreleasedVersion = "dev"

// Version is set with ldflags at release build time
var Version = UnreleasedVersion
