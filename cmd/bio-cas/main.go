// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// bio-cas decodes CLC cas reference assemblies. Run "bio-cas help" for the
// list of commands.
package main

import (
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/cas/cmd/bio-cas/cmd"
)

func main() {
	shutdown := grail.Init()
	code := cmd.Run()
	shutdown()
	os.Exit(code)
}
