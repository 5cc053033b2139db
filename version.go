package framepipe

// Version is the framepipe release, reported by the version command.
const Version = "0.3.0"
