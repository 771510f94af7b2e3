package reports

import (
	"context"
	"encoding/xml"
	"io"
	"strconv"
	"time"

	"Remark/internal/core/comments"
)

const xmlDeclaration = `<?xml version="1.0" encoding="utf-8" standalone="yes"?>` + "\n"

// reportRowChunk is how many rows are pulled from the database per fetch
// while a report streams to disk, bounding memory for arbitrarily large
// trees.
const reportRowChunk = 3

// field is one tag/value pair of a report element. A nil value renders as an
// empty element where nulls are kept and is skipped where they are not.
type field struct {
	tag   string
	value *string
}

func intField(tag string, v int64) field {
	s := strconv.FormatInt(v, 10)
	return field{tag: tag, value: &s}
}

func optIntField(tag string, v *int64) field {
	if v == nil {
		return field{tag: tag}
	}
	return intField(tag, *v)
}

func timeField(tag string, ts comments.Timestamp) field {
	s := ts.String()
	return field{tag: tag, value: &s}
}

func optTimeField(tag string, t *time.Time) field {
	if t == nil {
		return field{tag: tag}
	}
	return timeField(tag, comments.Timestamp(*t))
}

func strField(tag, v string) field {
	return field{tag: tag, value: &v}
}

type xmlReport struct {
	enc *xml.Encoder
}

func (x *xmlReport) open(name string) error {
	return x.enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: name}})
}

func (x *xmlReport) close(name string) error {
	return x.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: name}})
}

// fields writes one element per field. keepEmpty controls whether nil values
// produce an empty element or no element at all.
func (x *xmlReport) fields(keepEmpty bool, fields ...field) error {
	for _, f := range fields {
		if f.value == nil && !keepEmpty {
			continue
		}
		var text string
		if f.value != nil {
			text = *f.value
		}
		if err := x.open(f.tag); err != nil {
			return err
		}
		if err := x.enc.EncodeToken(xml.CharData(text)); err != nil {
			return err
		}
		if err := x.close(f.tag); err != nil {
			return err
		}
	}
	return nil
}

func requestFields(req *DlRequest) []field {
	return []field{
		optIntField("i_id", req.IID),
		intField("itype_id", req.ITypeID),
		optIntField("author_id", req.AuthorID),
		optTimeField("start", req.Start),
		optTimeField("end", req.End),
	}
}

func commentFields(c *comments.Comment) []field {
	return []field{
		intField("id", c.ID),
		intField("i_id", c.IID),
		intField("itype_id", c.ITypeID),
		intField("author_id", c.AuthorID),
		strField("content", c.Content),
		timeField("created", comments.Timestamp(c.Created)),
		timeField("updated", comments.Timestamp(c.Updated)),
		optIntField("parent_id", c.ParentID),
	}
}

// writeXMLReport streams the report for req to w: the request echo, the root
// element when the subtree is rooted at a comment, then every selected
// comment in chunks of reportRowChunk rows. The request element skips nulls;
// comment elements render every column including nulls.
func writeXMLReport(ctx context.Context, w io.Writer, req *DlRequest, root *comments.Comment, iter comments.Iterator) error {
	if _, err := io.WriteString(w, xmlDeclaration); err != nil {
		return err
	}

	x := &xmlReport{enc: xml.NewEncoder(w)}

	if err := x.open("user_request"); err != nil {
		return err
	}

	if err := x.open("request"); err != nil {
		return err
	}
	if err := x.fields(false, requestFields(req)...); err != nil {
		return err
	}
	if err := x.close("request"); err != nil {
		return err
	}

	if err := x.open("report"); err != nil {
		return err
	}

	if root != nil {
		if err := x.open("root"); err != nil {
			return err
		}
		// same shape as a comment row, minus the id
		if err := x.fields(false, commentFields(root)[1:]...); err != nil {
			return err
		}
		if err := x.close("root"); err != nil {
			return err
		}
	}

	for {
		chunk, err := iter.NextChunk(ctx, reportRowChunk)
		if err != nil {
			return err
		}
		if len(chunk) == 0 {
			break
		}
		for _, c := range chunk {
			if err := x.open("comment"); err != nil {
				return err
			}
			if err := x.fields(true, commentFields(c)...); err != nil {
				return err
			}
			if err := x.close("comment"); err != nil {
				return err
			}
		}
		if err := x.enc.Flush(); err != nil {
			return err
		}
	}

	if err := x.close("report"); err != nil {
		return err
	}
	if err := x.close("user_request"); err != nil {
		return err
	}

	return x.enc.Flush()
}
