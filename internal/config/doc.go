// Package config loads the optional pipeline file. A pipeline file is HCL
// holding a single `pipeline {}` block whose attributes mirror the command
// line flags, for example:
//
//	pipeline {
//	  scheduler = "scheduler:8786"
//	  channels  = 40
//	  inputs    = "${env.DATA_DIR}/inputs"
//	  twod      = true
//	}
//
// Expressions may read the process environment through the `env` object.
// Every attribute is optional; an attribute that is absent leaves the
// corresponding setting to the caller. When the path is a directory every
// .hcl file below it is loaded in lexical order and later files override
// earlier ones attribute by attribute.
package config
