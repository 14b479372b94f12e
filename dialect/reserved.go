package dialect

import "strings"

// common holds words reserved by every supported dialect.
var common = words(`
ALL ALTER AND ANY AS ASC BETWEEN BY CASE CHECK COLUMN CONSTRAINT CREATE CROSS
CURRENT_DATE CURRENT_TIME CURRENT_TIMESTAMP DEFAULT DELETE DESC DISTINCT DROP
ELSE END EXISTS FOREIGN FROM FULL GROUP HAVING IN INDEX INNER INSERT INTO IS
JOIN KEY LEFT LIKE NOT NULL ON OR ORDER OUTER PRIMARY REFERENCES RIGHT SELECT
SET TABLE THEN TO UNION UNIQUE UPDATE USER USING VALUES WHEN WHERE WITH
`)

var reserved = [...]map[string]bool{
	PostgreSQL: words(`
ANALYSE ANALYZE ARRAY ASYMMETRIC BOTH CAST COLLATE CURRENT_CATALOG CURRENT_ROLE
CURRENT_USER DEFERRABLE DO EXCEPT FALSE FETCH FOR GRANT ILIKE INITIALLY
INTERSECT LATERAL LEADING LIMIT LOCALTIME LOCALTIMESTAMP OFFSET ONLY PLACING
RETURNING SESSION_USER SOME SYMMETRIC TRAILING TRUE VARIADIC WINDOW
`),
	MySQL: words(`
ACCESSIBLE ADD BEFORE BIGINT BINARY BLOB BOTH CALL CASCADE CHANGE CHAR
CHARACTER CONDITION CONTINUE CONVERT CURRENT_USER CURSOR DATABASE DATABASES
DECIMAL DECLARE DELAYED DESCRIBE DIV DOUBLE DUAL EACH ELSEIF EXIT EXPLAIN
FALSE FETCH FLOAT FOR FORCE FULLTEXT GRANT IF IGNORE INT INTEGER INTERVAL
ITERATE KEYS KILL LEADING LEAVE LIMIT LINES LOAD LOCK LONG LOOP MATCH MOD
NATURAL OPTION OPTIMIZE OUT PARTITION PROCEDURE RANGE READ RANK REGEXP RELEASE
RENAME REPEAT REPLACE REQUIRE RESTRICT RETURN REVOKE ROW ROWS SCHEMA SEPARATOR
SHOW SPATIAL SQL STARTING TRIGGER TRUE UNDO UNLOCK UNSIGNED USAGE USE WHILE
WINDOW WRITE XOR ZEROFILL
`),
	SQLite: words(`
ABORT ACTION ADD AFTER ANALYZE ATTACH AUTOINCREMENT BEFORE BEGIN CASCADE CAST
COLLATE COMMIT CONFLICT DATABASE DEFERRABLE DEFERRED DETACH EACH EXCEPT
EXCLUSIVE EXPLAIN FAIL FOR GLOB IF IGNORE IMMEDIATE INDEXED INITIALLY INSTEAD
INTERSECT ISNULL LIMIT MATCH NATURAL NO NOTNULL OF OFFSET PLAN PRAGMA QUERY
RAISE RECURSIVE REGEXP REINDEX RELEASE RENAME REPLACE RESTRICT ROLLBACK ROW
SAVEPOINT TEMP TEMPORARY TRANSACTION TRIGGER VACUUM VIEW VIRTUAL WITHOUT
`),
	MSSQL: words(`
ADD BACKUP BEGIN BREAK BROWSE BULK CASCADE CHECKPOINT CLOSE CLUSTERED COALESCE
COLLATE COMMIT COMPUTE CONTAINS CONTAINSTABLE CONTINUE CONVERT CURRENT
CURRENT_USER CURSOR DATABASE DBCC DEALLOCATE DECLARE DENY DISK DISTRIBUTED
DOUBLE DUMP ERRLVL ESCAPE EXCEPT EXEC EXECUTE EXIT EXTERNAL FETCH FILE
FILLFACTOR FOR FREETEXT FREETEXTTABLE FUNCTION GOTO GRANT HOLDLOCK IDENTITY
IDENTITYCOL IDENTITY_INSERT IF INTERSECT KILL LINENO LOAD MERGE NATIONAL
NOCHECK NONCLUSTERED OF OFF OFFSETS OPEN OPENDATASOURCE OPENQUERY OPENROWSET
OPENXML OPTION OVER PERCENT PIVOT PLAN PRECISION PRINT PROC PROCEDURE PUBLIC
RAISERROR READ READTEXT RECONFIGURE REPLICATION RESTORE RESTRICT RETURN REVERT
REVOKE ROLLBACK ROWCOUNT ROWGUIDCOL RULE SAVE SCHEMA SECURITYAUDIT
SEMANTICKEYPHRASETABLE SESSION_USER SETUSER SHUTDOWN SOME STATISTICS
SYSTEM_USER TABLESAMPLE TEXTSIZE TOP TRAN TRANSACTION TRIGGER TRUNCATE
TRY_CONVERT TSEQUAL UNPIVOT UPDATETEXT USE VARYING VIEW WAITFOR WHILE
WITHIN WRITETEXT
`),
}

// IsReserved reports whether name is a reserved word of the dialect.
func (d DatabaseType) IsReserved(name string) bool {
	upper := strings.ToUpper(name)
	if common[upper] {
		return true
	}
	return d.Valid() && reserved[d][upper]
}

func words(s string) map[string]bool {
	fields := strings.Fields(s)
	m := make(map[string]bool, len(fields))
	for _, f := range fields {
		m[f] = true
	}
	return m
}
