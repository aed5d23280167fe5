// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package swapchain

import "errors"

// ErrChainNotFound is returned by Registry.Destroy when the given
// ChainID is not (or no longer) present in the registry.
var ErrChainNotFound = errors.New("swapchain: chain not found")
