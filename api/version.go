package api

// Version is the release version of this module. It must match the release
// tag and is sent in the User-Agent header.
const Version = "0.4.0"
