package engine

type resourceSlot struct {
	name string
	slot Slot
}

type sectionSlot struct {
	key  SectionKey
	slot Slot
}

// Checker tracks slot occupancy for teachers, rooms, whole sections and lab batches.
// A section slot is held either exclusively or by a set of distinct batches.
// It is not safe for concurrent use; each Scheduler owns one.
type Checker struct {
	teachers map[resourceSlot]Assignment
	rooms    map[resourceSlot]Assignment
	sections map[sectionSlot]Assignment
	batches  map[sectionSlot]map[int]Assignment
}

// NewChecker returns an empty checker.
func NewChecker() *Checker {
	return &Checker{
		teachers: make(map[resourceSlot]Assignment),
		rooms:    make(map[resourceSlot]Assignment),
		sections: make(map[sectionSlot]Assignment),
		batches:  make(map[sectionSlot]map[int]Assignment),
	}
}

// CanPlace reports whether every slot of a is free in all relevant dimensions. It has no side effects.
func (c *Checker) CanPlace(a Assignment) bool {
	return c.clash(a) == nil
}

// Commit records a. It fails with ErrDoubleBooking when CanPlace would be false.
func (c *Checker) Commit(a Assignment) error {
	if clash := c.clash(a); clash != nil {
		return clash
	}
	key := a.SectionKey()
	for _, slot := range a.Slots() {
		if a.Teacher != "" {
			c.teachers[resourceSlot{a.Teacher, slot}] = a
		}
		if a.Room != "" {
			c.rooms[resourceSlot{a.Room, slot}] = a
		}
		ss := sectionSlot{key, slot}
		if a.Batch == 0 {
			c.sections[ss] = a
			continue
		}
		held := c.batches[ss]
		if held == nil {
			held = make(map[int]Assignment)
			c.batches[ss] = held
		}
		held[a.Batch] = a
	}
	return nil
}

// Release removes a. Releasing an assignment that was never committed is a no-op.
func (c *Checker) Release(a Assignment) {
	key := a.SectionKey()
	for _, slot := range a.Slots() {
		if a.Teacher != "" {
			c.releaseResource(c.teachers, resourceSlot{a.Teacher, slot}, a)
		}
		if a.Room != "" {
			c.releaseResource(c.rooms, resourceSlot{a.Room, slot}, a)
		}
		ss := sectionSlot{key, slot}
		if a.Batch == 0 {
			if held, ok := c.sections[ss]; ok && held == a {
				delete(c.sections, ss)
			}
			continue
		}
		if held, ok := c.batches[ss]; ok {
			if current, ok := held[a.Batch]; ok && current == a {
				delete(held, a.Batch)
			}
			if len(held) == 0 {
				delete(c.batches, ss)
			}
		}
	}
}

// TeacherBusy reports whether teacher holds slot.
func (c *Checker) TeacherBusy(teacher string, slot Slot) bool {
	_, busy := c.teachers[resourceSlot{teacher, slot}]
	return busy
}

// RoomBusy reports whether room holds slot.
func (c *Checker) RoomBusy(room string, slot Slot) bool {
	_, busy := c.rooms[resourceSlot{room, slot}]
	return busy
}

func (c *Checker) releaseResource(index map[resourceSlot]Assignment, key resourceSlot, a Assignment) {
	if held, ok := index[key]; ok && held == a {
		delete(index, key)
	}
}

// clash returns the first conflict of a, checking section occupancy before teacher and room.
func (c *Checker) clash(a Assignment) *BookingError {
	key := a.SectionKey()
	for _, slot := range a.Slots() {
		ss := sectionSlot{key, slot}
		if held, ok := c.sections[ss]; ok {
			return &BookingError{Assignment: a, Holder: held, Dimension: DimensionSection, Resource: key.String(), Slot: slot}
		}
		if batches := c.batches[ss]; len(batches) > 0 {
			if a.Batch == 0 {
				return &BookingError{Assignment: a, Holder: anyHolder(batches), Dimension: DimensionSection, Resource: key.String(), Slot: slot}
			}
			if held, ok := batches[a.Batch]; ok {
				return &BookingError{Assignment: a, Holder: held, Dimension: DimensionBatch, Resource: key.String(), Slot: slot}
			}
		}
	}
	for _, slot := range a.Slots() {
		if a.Teacher == "" {
			break
		}
		if held, ok := c.teachers[resourceSlot{a.Teacher, slot}]; ok {
			return &BookingError{Assignment: a, Holder: held, Dimension: DimensionTeacher, Resource: a.Teacher, Slot: slot}
		}
	}
	for _, slot := range a.Slots() {
		if a.Room == "" {
			break
		}
		if held, ok := c.rooms[resourceSlot{a.Room, slot}]; ok {
			return &BookingError{Assignment: a, Holder: held, Dimension: DimensionRoom, Resource: a.Room, Slot: slot}
		}
	}
	return nil
}

// anyHolder picks the lowest batch so diagnostics are stable.
func anyHolder(batches map[int]Assignment) Assignment {
	lowest := 0
	for batch := range batches {
		if lowest == 0 || batch < lowest {
			lowest = batch
		}
	}
	return batches[lowest]
}

// blockers lists every assignment that keeps a from being placed, across all dimensions and slots.
func (c *Checker) blockers(a Assignment) []Assignment {
	var held []Assignment
	key := a.SectionKey()
	for _, slot := range a.Slots() {
		ss := sectionSlot{key, slot}
		if h, ok := c.sections[ss]; ok {
			held = append(held, h)
		}
		for batch, h := range c.batches[ss] {
			if a.Batch == 0 || batch == a.Batch {
				held = append(held, h)
			}
		}
		if a.Teacher != "" {
			if h, ok := c.teachers[resourceSlot{a.Teacher, slot}]; ok {
				held = append(held, h)
			}
		}
		if a.Room != "" {
			if h, ok := c.rooms[resourceSlot{a.Room, slot}]; ok {
				held = append(held, h)
			}
		}
	}
	return held
}
