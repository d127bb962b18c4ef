package malloc

import "errors"

var ErrmapNotRegular = errors.New("mappedpool.notregularfile")
var ErrmapNotReadable = errors.New("mappedpool.notreadable")
var ErrmapNoSize = errors.New("mappedpool.nosize")
var ErrmapNoFile = errors.New("mappedpool.nofile")
var ErrmapNotWritable = errors.New("mappedpool.notwritable")
var ErrmapZeroinit = errors.New("mappedpool.zeroinit")
var ErrmapSizeMismatch = errors.New("mappedpool.sizemismatch")
var ErrmapSizeAlign = errors.New("mappedpool.sizealign")
