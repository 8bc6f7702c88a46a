// Package file loads process configuration from a TOML file.
//
// Values are layered: built-in defaults, then ~/.sercha-vision/config.toml
// (or an explicit path), then SERCHA_VISION_* environment variables. A .env
// file in the working directory is loaded into the environment first.
//
// Example:
//
//	[drive]
//	root_folder_id = "1AbC..."
//	refresh_token  = "..."
//
//	[vector]
//	backend = "local"
package file
