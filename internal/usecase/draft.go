package usecase

import "sync"

// Draft is the pending question buffer shared by typing and capture.
type Draft struct {
	mu       sync.Mutex
	text     string
	onChange func(string)
}

func NewDraft(onChange func(string)) *Draft {
	return &Draft{onChange: onChange}
}

func (d *Draft) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

func (d *Draft) Set(text string) {
	d.mu.Lock()
	d.text = text
	d.mu.Unlock()
	d.emit(text)
}

// Append joins text onto the draft with a single space when it is non-empty.
func (d *Draft) Append(text string) {
	d.mu.Lock()
	if d.text == "" {
		d.text = text
	} else {
		d.text = d.text + " " + text
	}
	current := d.text
	d.mu.Unlock()
	d.emit(current)
}

// Take returns the draft and clears it.
func (d *Draft) Take() string {
	d.mu.Lock()
	text := d.text
	d.text = ""
	d.mu.Unlock()
	d.emit("")
	return text
}

func (d *Draft) emit(text string) {
	if d.onChange != nil {
		d.onChange(text)
	}
}
