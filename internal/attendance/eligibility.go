package attendance

// Eligible reports whether a student belongs to the audience of a scheduled
// class, with a short reason when they do not (logged, not shown to users).
//
// Rules, all of which must hold:
//   - department ids must match;
//   - when the student has a semester it must match (a student with no
//     semester on file matches any semester — a deliberate leniency carried
//     over from the original system, logged at mark time);
//   - sections must match only when both sides declare one.
func Eligible(student StudentProfile, class ScheduledClass) (bool, string) {
	if student.DepartmentID != class.DepartmentID {
		return false, "department mismatch"
	}
	if student.Semester != 0 && student.Semester != class.Semester {
		return false, "semester mismatch"
	}
	if student.Section != "" && class.Section != "" && student.Section != class.Section {
		return false, "section mismatch"
	}
	return true, ""
}
